package llm

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// invoiceSchema accepts partial records: every field is optional and may be
// null, since unreadable fields fall back to placeholders.
const invoiceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "date":                { "type": ["string", "null"] },
    "merchant":            { "type": ["string", "null"] },
    "invoice_description": { "type": ["string", "null"] },
    "month":               { "type": ["string", "integer", "null"] },
    "amount":              { "type": ["number", "string", "null"] },
    "currency_code":       { "type": ["string", "null"] }
  }
}`

var compiledSchema = jsonschema.MustCompileString("invoice.schema.json", invoiceSchema)
