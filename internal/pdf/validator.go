package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for PDF content and render settings
type Validator struct {
	conf *model.Configuration
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Validator{conf: conf}
}

// ValidateHeader rejects empty input and content without a PDF signature
func (v *Validator) ValidateHeader(content []byte) error {
	if len(content) == 0 {
		return domain.DecodeError("file is empty", nil)
	}

	// Signature may follow a short preamble; readers accept it within the first KB
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return domain.DecodeError("missing %PDF header", nil)
	}

	return nil
}

// PageCount parses the document structure and returns its page count
func (v *Validator) PageCount(content []byte) (int, error) {
	if err := v.ValidateHeader(content); err != nil {
		return 0, err
	}

	n, err := api.PageCount(bytes.NewReader(content), v.conf)
	if err != nil {
		return 0, domain.DecodeError("unreadable PDF structure", err)
	}
	if n == 0 {
		return 0, domain.DecodeError("PDF has no pages", nil)
	}

	return n, nil
}

// ValidateQuality validates JPEG quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}

// ValidateScale validates the render scale factor
func (v *Validator) ValidateScale(scale float64) error {
	if scale < 0.5 || scale > 4 {
		return domain.ValidationError(fmt.Sprintf("scale must be between 0.5 and 4, got %g", scale), nil)
	}
	return nil
}
