package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a tracked file
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ProviderKind selects the extraction backend
type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderOpenRouter ProviderKind = "openrouter"
	ProviderGemini     ProviderKind = "gemini"
)

// SupportedProviders lists every extraction backend in display order
var SupportedProviders = []ProviderKind{
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderGemini,
}

// ParseProviderKind normalizes a provider name
func ParseProviderKind(s string) (ProviderKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range SupportedProviders {
		if string(p) == name {
			return p, nil
		}
	}
	return "", ValidationError(fmt.Sprintf("unknown provider %q", s), nil)
}

// Placeholders substituted when the model cannot read a field
const (
	UnknownDate     = "unknown-date"
	UnknownMerchant = "unknown-merchant"
	UnknownInvoice  = "invoice"
	UnknownMonth    = "00"
	UnknownCurrency = "XXX"
)

// InvoiceFields is the structured record extracted from one invoice
type InvoiceFields struct {
	Date               string          `json:"date"`     // YYYY-MM-DD
	Merchant           string          `json:"merchant"` // Seller name
	InvoiceDescription string          `json:"invoice_description"`
	Month              string          `json:"month"` // Two digits
	Amount             decimal.Decimal `json:"amount"`
	CurrencyCode       string          `json:"currency_code"`
}

// Clone returns an independent copy
func (f *InvoiceFields) Clone() *InvoiceFields {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// RenameConfig is the per-run configuration chosen by the user
type RenameConfig struct {
	Template        string       `json:"template" yaml:"template"`
	SanitizeEnabled bool         `json:"sanitize" yaml:"sanitize"`
	Provider        ProviderKind `json:"provider" yaml:"provider"`
	DryRun          bool         `json:"dry_run" yaml:"dry_run"`
}

// Input is one ingested entry. Handle is the directory the entry was read
// from, or nil when the file was supplied on its own.
type Input struct {
	Name    string
	Content []byte
	Handle  Directory
}

// TrackedFile is one ingested PDF and its processing state.
// Content and Handle are owned by the file until commit.
type TrackedFile struct {
	ID           string
	OriginalName string
	Content      []byte
	Handle       Directory // nil in export mode
	Extracted    *InvoiceFields
	NewName      string
	Status       Status
	Error        string
	Committed    bool   // false for dry runs and export mode
	ExportedTo   string // set when content was written to the export directory
	DryRun       bool   // completed without touching storage
}

// NewTrackedFile creates a pending file whose new name equals its original name
func NewTrackedFile(id, name string, content []byte, handle Directory) *TrackedFile {
	return &TrackedFile{
		ID:           id,
		OriginalName: name,
		Content:      content,
		Handle:       handle,
		NewName:      name,
		Status:       StatusPending,
	}
}

// FileView is a read-only snapshot of a TrackedFile without its content
type FileView struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"original_name"`
	NewName      string         `json:"new_name"`
	Status       Status         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Extracted    *InvoiceFields `json:"extracted,omitempty"`
	Location     string         `json:"location,omitempty"`
	Committed    bool           `json:"committed"`
	ExportedTo   string         `json:"exported_to,omitempty"`
	DryRun       bool           `json:"dry_run,omitempty"`
	Size         int            `json:"size"`
}

// View snapshots the file
func (f *TrackedFile) View() FileView {
	v := FileView{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		NewName:      f.NewName,
		Status:       f.Status,
		Error:        f.Error,
		Extracted:    f.Extracted.Clone(),
		Committed:    f.Committed,
		ExportedTo:   f.ExportedTo,
		DryRun:       f.DryRun,
		Size:         len(f.Content),
	}
	if f.Handle != nil {
		v.Location = f.Handle.Location()
	}
	return v
}
