package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

func TestValidator_ValidateHeader(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateHeader([]byte("%PDF-1.7\n...")))
	assert.NoError(t, v.ValidateHeader([]byte("\x00\x00junk%PDF-1.4")))

	err := v.ValidateHeader(nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))

	err = v.ValidateHeader([]byte("GIF89a"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
}

func TestValidator_PageCount(t *testing.T) {
	v := NewValidator()

	n, err := v.PageCount(buildPDF(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = v.PageCount([]byte("%PDF-1.4\ngarbage"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
}

func TestValidator_Settings(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateQuality(1))
	assert.NoError(t, v.ValidateQuality(100))
	assert.Error(t, v.ValidateQuality(101))

	assert.NoError(t, v.ValidateScale(0.5))
	assert.NoError(t, v.ValidateScale(4))
	assert.Error(t, v.ValidateScale(4.5))
}
