package naming

import (
	"regexp"
	"strings"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// Tokens lists the recognized placeholders in display order.
var Tokens = []string{"date", "merchant", "invoice", "month", "amount", "currency"}

// Render replaces each recognized placeholder in template with the matching
// field of fields. Unrecognized placeholders are left verbatim. A nil record
// renders every placeholder with its fallback.
func Render(template string, fields *domain.InvoiceFields) string {
	values := fieldValues(fields)
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		token := match[1 : len(match)-1]
		if v, ok := values[token]; ok {
			return v
		}
		return match
	})
}

// Build renders template, optionally sanitizes, and enforces the ".pdf" suffix.
// A name that renders empty becomes the invoice fallback.
func Build(template string, sanitize bool, fields *domain.InvoiceFields) string {
	name := Render(template, fields)
	if sanitize {
		name = Sanitize(name)
	}
	if strings.TrimSpace(name) == "" {
		name = domain.UnknownInvoice
	}
	return EnsurePDFSuffix(name)
}

func fieldValues(f *domain.InvoiceFields) map[string]string {
	if f == nil {
		f = &domain.InvoiceFields{}
	}
	return map[string]string{
		"date":     orFallback(f.Date, domain.UnknownDate),
		"merchant": orFallback(f.Merchant, domain.UnknownMerchant),
		"invoice":  orFallback(f.InvoiceDescription, domain.UnknownInvoice),
		"month":    orFallback(f.Month, domain.UnknownMonth),
		"amount":   f.Amount.String(),
		"currency": orFallback(f.CurrencyCode, domain.UnknownCurrency),
	}
}

func orFallback(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
