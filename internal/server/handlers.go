package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/pipeline"
	"github.com/JR-coderli/SmartPdfRename/internal/storage"
)

// FilesDTO is the response for GET /files and POST /ingest.
type FilesDTO struct {
	Running bool              `json:"running"`
	Files   []domain.FileView `json:"files"`
}

// IngestRequestDTO is the body of POST /ingest.
type IngestRequestDTO struct {
	Location string `json:"location"`
}

// RunRequestDTO is the body of POST /run. Omitted fields take the configured defaults.
type RunRequestDTO struct {
	Template *string `json:"template,omitempty"`
	Sanitize *bool   `json:"sanitize,omitempty"`
	Provider *string `json:"provider,omitempty"`
	DryRun   *bool   `json:"dry_run,omitempty"`
}

// RunStatusDTO is the response for GET /run and POST /run.
type RunStatusDTO struct {
	Running    bool              `json:"running"`
	StartedAt  string            `json:"started_at,omitempty"`
	FinishedAt string            `json:"finished_at,omitempty"`
	Summary    *pipeline.Summary `json:"summary,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "pdf-renamer",
		"running": s.ctrl.Running(),
	})
}

// listFiles handles GET /files.
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FilesDTO{
		Running: s.ctrl.Running(),
		Files:   s.ctrl.Files(),
	})
}

// clearFiles handles DELETE /files.
func (s *Server) clearFiles(w http.ResponseWriter, r *http.Request) {
	if s.isActive() {
		writeError(w, http.StatusConflict, "run in progress", "")
		return
	}
	if err := s.ctrl.Clear(); err != nil {
		s.writeDomainError(w, "clear failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ingest handles POST /ingest.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		writeError(w, http.StatusBadRequest, "location is required", "")
		return
	}
	if s.isActive() {
		writeError(w, http.StatusConflict, "run in progress", "")
		return
	}

	dir, err := s.cfg.Opener(ctx, req.Location)
	if err != nil {
		s.writeDomainError(w, "open location failed", err)
		return
	}
	inputs, err := storage.Ingest(ctx, dir)
	if err != nil {
		storage.CloseDirectory(dir)
		s.writeDomainError(w, "ingest failed", err)
		return
	}

	views, err := s.ctrl.Ingest(inputs)
	if err != nil {
		storage.CloseDirectory(dir)
		s.writeDomainError(w, "ingest failed", err)
		return
	}
	if len(inputs) == 0 {
		storage.CloseDirectory(dir)
	}

	s.logger.Info().
		Str("location", dir.Location()).
		Int("files", len(views)).
		Msg("Ingested location")

	writeJSON(w, http.StatusOK, FilesDTO{Running: false, Files: views})
}

// startRun handles POST /run.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	cfg := s.cfg.Defaults
	if req.Template != nil {
		cfg.Template = *req.Template
	}
	if req.Sanitize != nil {
		cfg.SanitizeEnabled = *req.Sanitize
	}
	if req.Provider != nil {
		cfg.Provider = domain.ProviderKind(*req.Provider)
	}
	if req.DryRun != nil {
		cfg.DryRun = *req.DryRun
	}

	kind, err := domain.ParseProviderKind(string(cfg.Provider))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider", domain.Describe(err))
		return
	}
	cfg.Provider = kind
	if strings.TrimSpace(cfg.Template) == "" {
		writeError(w, http.StatusBadRequest, "template is required", "")
		return
	}

	if err := s.launch(cfg); err != nil {
		s.writeDomainError(w, "run not started", err)
		return
	}

	s.logger.Info().
		Str("template", cfg.Template).
		Str("provider", string(cfg.Provider)).
		Bool("dry_run", cfg.DryRun).
		Msg("Run started")

	writeJSON(w, http.StatusAccepted, s.status())
}

// runStatus handles GET /run.
func (s *Server) runStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() RunStatusDTO {
	s.mu.Lock()
	defer s.mu.Unlock()

	dto := RunStatusDTO{
		Running: s.active,
		Summary: s.last,
		Error:   s.lastErr,
	}
	if !s.started.IsZero() {
		dto.StartedAt = s.started.Format(time.RFC3339)
	}
	if !s.active && !s.finished.IsZero() {
		dto.FinishedAt = s.finished.Format(time.RFC3339)
	}
	return dto
}

func (s *Server) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case domain.IsType(err, domain.ErrorTypeValidation):
		status = http.StatusBadRequest
	case domain.IsType(err, domain.ErrorTypePermission):
		status = http.StatusForbidden
	case domain.IsType(err, domain.ErrorTypeConfig):
		status = http.StatusFailedDependency
	}
	writeError(w, status, message, domain.Describe(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
