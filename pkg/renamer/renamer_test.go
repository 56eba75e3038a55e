package renamer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/journal"
	"github.com/JR-coderli/SmartPdfRename/internal/llm"
)

// samplePDF returns a one-page document whose content stream draws a
// rectangle of the given width, so different files rasterize differently.
func samplePDF(width int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	content := fmt.Sprintf("0 0 0 rg 10 10 %d 40 re f", width)
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 100] /Resources << >> /Contents 4 0 R >>")
	obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

const invoiceReply = `{"choices":[{"message":{"role":"assistant","content":` +
	`"{\"date\":\"2024-01-05\",\"merchant\":\"Acme\",\"invoice_description\":\"Hosting\",\"month\":\"01\",\"amount\":42.5,\"currency_code\":\"usd\"}"}}]}`

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.Export.Dir = filepath.Join(t.TempDir(), "renamed")
	cfg.Cache.Driver = "memory"

	p := cfg.Providers[domain.ProviderOpenAI]
	p.BaseURL = endpoint
	p.APIKeyEnv = "RENAMER_TEST_KEY"
	cfg.Providers[domain.ProviderOpenAI] = p
	return cfg
}

func newRenamer(t *testing.T, cfg *config.Config) *Renamer {
	t.Helper()
	r, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNew_BuildsCachedExtractor(t *testing.T) {
	r := newRenamer(t, testConfig(t, "http://127.0.0.1:0"))

	e, err := r.extractor(domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.IsType(t, &llm.CachedExtractor{}, e)
	assert.Equal(t, "openai/gpt-4o-mini", e.Name())

	again, err := r.extractor(domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.Same(t, e, again)
}

func TestNew_WithoutCacheOrJournal(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Cache.Driver = "none"
	cfg.Journal.Enabled = false
	r := newRenamer(t, cfg)

	e, err := r.extractor(domain.ProviderGemini)
	require.NoError(t, err)
	assert.IsType(t, &llm.VisionExtractor{}, e)

	_, err = r.History(context.Background(), 10)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
	_, err = r.Undo(context.Background(), "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestNew_RejectsBadRaster(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Raster.Quality = 0
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestRenameAndUndo_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(invoiceReply))
	}))
	defer provider.Close()
	t.Setenv("RENAMER_TEST_KEY", "sk-test")

	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "scan1.pdf"), samplePDF(80), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "scan2.pdf"), samplePDF(120), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "broken.pdf"), []byte("not a pdf"), 0o644))

	r := newRenamer(t, testConfig(t, provider.URL))
	ctx := context.Background()

	views, err := r.IngestLocation(ctx, inbox)
	require.NoError(t, err)
	require.Len(t, views, 3)

	summary, err := r.Run(ctx, r.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.EqualValues(t, 2, calls.Load())

	files := r.Files()
	assert.Equal(t, domain.StatusFailed, files[0].Status)
	assert.Contains(t, files[0].Error, "decode failed: ")
	assert.Equal(t, "2024-01-05_Acme_42.5.pdf", files[1].NewName)
	assert.Equal(t, "2024-01-05_Acme_42.5 (2).pdf", files[2].NewName)
	assert.Equal(t, "USD", files[1].Extracted.CurrencyCode)

	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"broken.pdf", "2024-01-05_Acme_42.5.pdf", "2024-01-05_Acme_42.5 (2).pdf"}, names)

	runs, err := r.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Renames)

	result, err := r.Undo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, result.RunID)
	assert.Equal(t, 2, result.Restored)
	assert.Empty(t, result.Failures)

	for _, name := range []string{"scan1.pdf", "scan2.pdf", "broken.pdf"} {
		_, err := os.Stat(filepath.Join(inbox, name))
		assert.NoError(t, err, name)
	}

	_, err = r.Undo(ctx, "")
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = r.Undo(ctx, summary.RunID)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestRun_SecondRunUsesCache(t *testing.T) {
	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(invoiceReply))
	}))
	defer provider.Close()
	t.Setenv("RENAMER_TEST_KEY", "sk-test")

	src := filepath.Join(t.TempDir(), "bill.pdf")
	require.NoError(t, os.WriteFile(src, samplePDF(60), 0o644))

	cfg := testConfig(t, provider.URL)
	r := newRenamer(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := r.IngestFiles(ctx, []string{src})
		require.NoError(t, err)
		summary, err := r.Run(ctx, r.Defaults())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Exported)
	}

	assert.EqualValues(t, 1, calls.Load())

	exported, err := os.ReadDir(cfg.Export.Dir)
	require.NoError(t, err)
	assert.Len(t, exported, 2)

	require.NoError(t, r.PurgeCache(ctx))
	_, err = r.IngestFiles(ctx, []string{src})
	require.NoError(t, err)
	_, err = r.Run(ctx, r.Defaults())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "purged cache sends the file to the provider again")

	_, err = os.Stat(src)
	assert.NoError(t, err, "export mode leaves the source alone")
}

func TestRun_MissingCredential(t *testing.T) {
	t.Setenv("RENAMER_TEST_KEY", "")
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.pdf"), samplePDF(50), 0o644))

	r := newRenamer(t, testConfig(t, "http://127.0.0.1:1"))
	ctx := context.Background()
	_, err := r.IngestLocation(ctx, inbox)
	require.NoError(t, err)

	summary, err := r.Run(ctx, r.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, r.Files()[0].Error, "extraction failed: ")

	runs, err := r.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Zero(t, runs[0].Renames)
}

func TestUndo_ReportsConflicts(t *testing.T) {
	r := newRenamer(t, testConfig(t, ""))
	ctx := context.Background()

	inbox := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, name), []byte(content), 0o644))
	}
	write("renamed-a.pdf", "A")
	write("renamed-b.pdf", "B")
	write("b.pdf", "someone else")

	runID, err := r.journal.StartRun(ctx, journal.RunInfo{Location: inbox, Provider: "openai", Template: "{merchant}"})
	require.NoError(t, err)
	require.NoError(t, r.journal.Record(ctx, runID, inbox, "a.pdf", "renamed-a.pdf"))
	require.NoError(t, r.journal.Record(ctx, runID, inbox, "b.pdf", "renamed-b.pdf"))
	require.NoError(t, r.journal.Record(ctx, runID, inbox, "c.pdf", "renamed-c.pdf"))

	result, err := r.Undo(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "renamed-c.pdf", result.Failures[0].Entry.NewName)
	assert.Contains(t, result.Failures[0].Error, "no longer exists")
	assert.Contains(t, result.Failures[1].Error, "taken by another file")

	data, err := os.ReadFile(filepath.Join(inbox, "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
	data, err = os.ReadFile(filepath.Join(inbox, "b.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "someone else", string(data))

	run, err := r.journal.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, run.UndoneAt, "partial undo leaves the run undoable")

	// Second attempt skips the restored entry
	result, err = r.Undo(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Failures, 2)
}

func TestUndo_UnknownRun(t *testing.T) {
	r := newRenamer(t, testConfig(t, ""))
	_, err := r.Undo(context.Background(), "missing")
	assert.ErrorIs(t, err, journal.ErrRunNotFound)
}
