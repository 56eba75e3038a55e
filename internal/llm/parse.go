package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

var fenceRe = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(.*?)\\s*```$")

// dateLayouts are tried in order when the model ignores the requested format
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"20060102",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006年1月2日",
}

// placeholderWords are values models emit instead of leaving a field empty
var placeholderWords = map[string]bool{
	"":        true,
	"null":    true,
	"none":    true,
	"n/a":     true,
	"na":      true,
	"unknown": true,
	"-":       true,
}

// stripCodeFence removes surrounding whitespace and an optional ```json fence.
// Prose around a single object is dropped as well.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// ParseFields decodes a model reply into invoice fields. Only malformed
// payloads fail; unreadable or missing fields become placeholders.
func ParseFields(content string) (*domain.InvoiceFields, error) {
	payload := stripCodeFence(content)
	if payload == "" {
		return nil, domain.ParseError("empty payload", nil)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.ParseError("payload is not valid JSON", err)
	}
	if dec.More() {
		return nil, domain.ParseError("payload has trailing data", nil)
	}

	if err := compiledSchema.Validate(raw); err != nil {
		return nil, domain.ParseError("payload does not match invoice schema", err)
	}

	obj := raw.(map[string]interface{})
	return normalize(obj), nil
}

func normalize(obj map[string]interface{}) *domain.InvoiceFields {
	fields := &domain.InvoiceFields{
		Merchant:           textField(obj["merchant"]),
		InvoiceDescription: textField(obj["invoice_description"]),
		Amount:             amountField(obj["amount"]),
		CurrencyCode:       currencyField(obj["currency_code"]),
	}

	date, parsed := dateField(obj["date"])
	fields.Date = date
	fields.Month = monthField(obj["month"], parsed)

	if fields.Date == "" {
		fields.Date = domain.UnknownDate
	}
	if fields.Merchant == "" {
		fields.Merchant = domain.UnknownMerchant
	}
	if fields.InvoiceDescription == "" {
		fields.InvoiceDescription = domain.UnknownInvoice
	}
	if fields.Month == "" {
		fields.Month = domain.UnknownMonth
	}
	if fields.CurrencyCode == "" {
		fields.CurrencyCode = domain.UnknownCurrency
	}

	return fields
}

func textField(v interface{}) string {
	s, _ := v.(string)
	s = strings.Join(strings.Fields(s), " ")
	if placeholderWords[strings.ToLower(s)] {
		return ""
	}
	return s
}

func dateField(v interface{}) (string, time.Time) {
	s := textField(v)
	if s == "" {
		return "", time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), t
		}
	}
	return "", time.Time{}
}

func monthField(v interface{}, date time.Time) string {
	var n int
	switch m := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(m.String())
		if err == nil {
			n = i
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(m))
		if err == nil {
			n = i
		}
	}
	if n < 1 || n > 12 {
		if date.IsZero() {
			return ""
		}
		n = int(date.Month())
	}
	return fmt.Sprintf("%02d", n)
}

func amountField(v interface{}) decimal.Decimal {
	switch a := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(a.String()); err == nil {
			return d
		}
	case string:
		if d, ok := parseAmountText(a); ok {
			return d
		}
	}
	return decimal.Zero
}

// parseAmountText reads amounts such as "$1,234.50", "1.234,50 EUR" or "42".
// The last of "." and "," is taken as the decimal separator when it is
// followed by one or two digits.
func parseAmountText(s string) (decimal.Decimal, bool) {
	var b bytes.Buffer
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	num := strings.Trim(b.String(), ".,")
	if num == "" {
		return decimal.Zero, false
	}

	sep := strings.LastIndexAny(num, ".,")
	if sep >= 0 && len(num)-sep-1 <= 2 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(num[:sep])
		num = intPart + "." + num[sep+1:]
	} else {
		num = strings.NewReplacer(".", "", ",", "").Replace(num)
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func currencyField(v interface{}) string {
	s := textField(v)
	if s == "" {
		return ""
	}
	isCode := len(s) == 3
	for _, r := range s {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			isCode = false
		}
	}
	if isCode {
		return strings.ToUpper(s)
	}
	return s
}
