package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/pipeline"
)

type stubRasterizer struct{}

func (stubRasterizer) Rasterize(_ context.Context, pdf []byte) ([]byte, error) {
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, domain.DecodeError("missing %PDF header", nil)
	}
	return pdf, nil
}

// gatedExtractor names each file after its content and, when gate is set,
// blocks until the gate is closed
type gatedExtractor struct {
	entered chan struct{}
	gate    chan struct{}
}

func (e *gatedExtractor) Name() string { return "stub/vision" }

func (e *gatedExtractor) Extract(ctx context.Context, image []byte) (*domain.InvoiceFields, error) {
	if e.gate != nil {
		e.entered <- struct{}{}
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	merchant := strings.TrimPrefix(string(image), "%PDF-")
	return &domain.InvoiceFields{Merchant: merchant, Date: "2024-01-05"}, nil
}

func newTestServer(t *testing.T, extractor *gatedExtractor) (*Server, http.Handler) {
	t.Helper()
	ctrl, err := pipeline.NewController(pipeline.Options{
		Rasterizer: stubRasterizer{},
		Extractors: func(domain.ProviderKind) (domain.Extractor, error) { return extractor, nil },
	})
	require.NoError(t, err)

	srv := New(ctrl, Config{
		Defaults: domain.RenameConfig{
			Template:        "{date}_{merchant}",
			SanitizeEnabled: true,
			Provider:        domain.ProviderOpenAI,
		},
	}, nil)
	t.Cleanup(srv.Close)
	return srv, srv.Handler()
}

func writeInbox(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, &gatedExtractor{})

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestIngest(t *testing.T) {
	_, h := newTestServer(t, &gatedExtractor{})
	inbox := writeInbox(t, map[string]string{
		"b.PDF":     "%PDF-b",
		"a.pdf":     "%PDF-a",
		"notes.txt": "skip me",
	})

	rec := do(t, h, http.MethodPost, "/ingest", IngestRequestDTO{Location: inbox})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[FilesDTO](t, rec)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.pdf", resp.Files[0].OriginalName)
	assert.Equal(t, "b.PDF", resp.Files[1].OriginalName)
	assert.Equal(t, domain.StatusPending, resp.Files[0].Status)

	listed := decode[FilesDTO](t, do(t, h, http.MethodGet, "/files", nil))
	assert.Equal(t, resp.Files, listed.Files)
}

func TestIngest_BadRequests(t *testing.T) {
	_, h := newTestServer(t, &gatedExtractor{})
	plainFile := filepath.Join(writeInbox(t, map[string]string{"a.pdf": "%PDF-a"}), "a.pdf")

	tests := []struct {
		name string
		body any
		code int
	}{
		{name: "not json", body: "nope", code: http.StatusBadRequest},
		{name: "missing location", body: IngestRequestDTO{}, code: http.StatusBadRequest},
		{name: "missing directory", body: IngestRequestDTO{Location: filepath.Join(t.TempDir(), "missing")}, code: http.StatusNotFound},
		{name: "not a directory", body: IngestRequestDTO{Location: plainFile}, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/ingest", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRun_RenamesInBackground(t *testing.T) {
	srv, h := newTestServer(t, &gatedExtractor{})
	inbox := writeInbox(t, map[string]string{
		"a.pdf": "%PDF-Acme",
		"b.pdf": "garbage",
	})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ingest", IngestRequestDTO{Location: inbox}).Code)

	template := "{merchant}"
	rec := do(t, h, http.MethodPost, "/run", RunRequestDTO{Template: &template})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.Wait()

	files := decode[FilesDTO](t, do(t, h, http.MethodGet, "/files", nil)).Files
	require.Len(t, files, 2)
	assert.Equal(t, domain.StatusCompleted, files[0].Status)
	assert.Equal(t, "Acme.pdf", files[0].NewName)
	assert.Equal(t, domain.StatusFailed, files[1].Status)
	assert.True(t, strings.HasPrefix(files[1].Error, "decode failed: "))

	_, err := os.Stat(filepath.Join(inbox, "Acme.pdf"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(inbox, "a.pdf"))
	assert.True(t, os.IsNotExist(err))

	status := decode[RunStatusDTO](t, do(t, h, http.MethodGet, "/run", nil))
	assert.False(t, status.Running)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 1, status.Summary.Completed)
	assert.Equal(t, 1, status.Summary.Failed)
	assert.NotEmpty(t, status.FinishedAt)
}

func TestRun_ConflictsWhileRunning(t *testing.T) {
	extractor := &gatedExtractor{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	srv, h := newTestServer(t, extractor)
	inbox := writeInbox(t, map[string]string{"a.pdf": "%PDF-a"})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/ingest", IngestRequestDTO{Location: inbox}).Code)

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/run", nil).Code)
	<-extractor.entered

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/run", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/ingest", IngestRequestDTO{Location: inbox}).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodDelete, "/files", nil).Code)

	status := decode[RunStatusDTO](t, do(t, h, http.MethodGet, "/run", nil))
	assert.True(t, status.Running)

	files := decode[FilesDTO](t, do(t, h, http.MethodGet, "/files", nil))
	assert.True(t, files.Running)
	assert.Equal(t, domain.StatusProcessing, files.Files[0].Status)

	close(extractor.gate)
	srv.Wait()

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/files", nil).Code)
	assert.Empty(t, decode[FilesDTO](t, do(t, h, http.MethodGet, "/files", nil)).Files)
}

func TestRun_InvalidProvider(t *testing.T) {
	_, h := newTestServer(t, &gatedExtractor{})

	provider := "claude"
	rec := do(t, h, http.MethodPost, "/run", RunRequestDTO{Provider: &provider})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown provider")
}

func TestCORS_Preflight(t *testing.T) {
	_, h := newTestServer(t, &gatedExtractor{})

	req := httptest.NewRequest(http.MethodOptions, "/files", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
