package llm

// buildPrompt creates the extraction instruction shared by every backend
func buildPrompt() string {
	return `You are an invoice data extraction assistant. Read the attached image of the first page of an invoice or receipt.

Return ONLY a single JSON object with exactly these keys:

{
  "date": "YYYY-MM-DD",
  "merchant": "seller or issuer name",
  "invoice_description": "short description of what was purchased, at most 6 words",
  "month": "MM",
  "amount": 0.00,
  "currency_code": "ISO 4217 code such as USD, EUR, CNY"
}

RULES:
- "date" is the invoice or issue date, formatted YYYY-MM-DD
- "month" is the two-digit month of that date
- "amount" is the final total payable including tax, as a plain number without symbols or thousands separators
- "currency_code" is the ISO code; if only a symbol is printed, give the symbol
- "merchant" is the company that issued the invoice, not the customer
- If a field cannot be read, use an empty string ("") or 0 for amount. Never guess.
- Do not wrap the JSON in Markdown and do not add any commentary`
}
