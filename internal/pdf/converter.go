package pdf

import (
	"bytes"
	"context"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
)

// baseDPI is the PDF user-space resolution; scale multiplies it.
const baseDPI = 72.0

// Converter implements first-page rasterization using go-fitz
type Converter struct {
	scale     float64
	quality   int
	validator *Validator
	logger    *observability.Logger
}

// NewConverter creates a converter rendering at scale and encoding JPEG at quality
func NewConverter(scale float64, quality int, logger *observability.Logger) (*Converter, error) {
	validator := NewValidator()
	if err := validator.ValidateScale(scale); err != nil {
		return nil, err
	}
	if err := validator.ValidateQuality(quality); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Converter{
		scale:     scale,
		quality:   quality,
		validator: validator,
		logger:    logger.WithOperation("rasterize"),
	}, nil
}

// Rasterize renders page 1 of pdfBytes and returns it as JPEG
func (c *Converter) Rasterize(ctx context.Context, pdfBytes []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.validator.ValidateHeader(pdfBytes); err != nil {
		return nil, err
	}

	// MuPDF repairs documents pdfcpu rejects, so a structural failure is only logged
	if pages, err := c.validator.PageCount(pdfBytes); err != nil {
		c.logger.Debug().Err(err).Msg("Structural check failed, deferring to renderer")
	} else {
		c.logger.Debug().Int("pages", pages).Msg("Structural check passed")
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, domain.DecodeError("failed to open PDF", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, domain.DecodeError("PDF has no pages", nil)
	}

	img, err := doc.ImageDPI(0, baseDPI*c.scale)
	if err != nil {
		return nil, domain.DecodeError("failed to render page 1", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, domain.DecodeError("failed to encode page 1 as JPG", err)
	}

	bounds := img.Bounds()
	c.logger.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("bytes", buf.Len()).
		Msg("Rendered first page")

	return buf.Bytes(), nil
}

var _ domain.Rasterizer = (*Converter)(nil)
