package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

func resetRenameFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		renameTemplate, renameProvider = "", ""
		renameNoSanitize, renameDryRun = false, false
	})
}

func TestRenameConfig_AppliesOverrides(t *testing.T) {
	resetRenameFlags(t)
	defaults := domain.RenameConfig{Template: "{date}", SanitizeEnabled: true, Provider: domain.ProviderOpenAI}

	cfg, err := renameConfig(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)

	renameTemplate = "{merchant}_{amount}"
	renameProvider = "Gemini"
	renameNoSanitize = true
	renameDryRun = true

	cfg, err = renameConfig(defaults)
	require.NoError(t, err)
	assert.Equal(t, domain.RenameConfig{
		Template:        "{merchant}_{amount}",
		SanitizeEnabled: false,
		Provider:        domain.ProviderGemini,
		DryRun:          true,
	}, cfg)
}

func TestRenameConfig_RejectsBadInput(t *testing.T) {
	resetRenameFlags(t)

	renameProvider = "claude"
	_, err := renameConfig(domain.RenameConfig{Template: "{date}"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	renameProvider = ""
	_, err = renameConfig(domain.RenameConfig{Template: "  "})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestIsLocation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o644))

	assert.True(t, isLocation(dir))
	assert.True(t, isLocation("s3://bucket/inbox"))
	assert.True(t, isLocation("GS://bucket"))
	assert.False(t, isLocation(file))
	assert.False(t, isLocation(filepath.Join(dir, "missing")))
}

func TestVersionCommand(t *testing.T) {
	Version = "1.2.3"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute())
	assert.Equal(t, "pdf-renamer 1.2.3\n", out.String())
}
