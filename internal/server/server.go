// Package server exposes the batch controller over HTTP so an external UI can
// ingest a directory, start a run and poll per-file status.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
	"github.com/JR-coderli/SmartPdfRename/internal/pipeline"
	"github.com/JR-coderli/SmartPdfRename/internal/storage"
)

// Opener resolves a location string to a directory capability
type Opener func(ctx context.Context, location string) (domain.Directory, error)

// Config holds server settings.
type Config struct {
	Defaults       domain.RenameConfig
	AllowedOrigins []string
	RequestTimeout time.Duration
	Opener         Opener // defaults to storage.Open
}

// Server serves the status API. Runs started through it execute in the
// background and outlive the request that started them.
type Server struct {
	ctrl     *pipeline.Controller
	cfg      Config
	logger   *observability.Logger
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	active   bool
	last     *pipeline.Summary
	lastErr  string
	started  time.Time
	finished time.Time
}

// New creates a server around ctrl
func New(ctrl *pipeline.Controller, cfg Config, logger *observability.Logger) *Server {
	if cfg.Opener == nil {
		cfg.Opener = storage.Open
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if logger == nil {
		logger = observability.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger.WithOperation("server"),
		runCtx: ctx,
		cancel: cancel,
	}
}

// Handler returns the router with all routes configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/health", s.health)
	r.Get("/files", s.listFiles)
	r.Delete("/files", s.clearFiles)
	r.Post("/ingest", s.ingest)
	r.Get("/run", s.runStatus)
	r.Post("/run", s.startRun)

	return r
}

// Close cancels a background run and waits for it to stop
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until no background run is active
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// launch starts cfg in the background unless a run is already active
func (s *Server) launch(cfg domain.RenameConfig) error {
	s.mu.Lock()
	if s.active || s.ctrl.Running() {
		s.mu.Unlock()
		return pipeline.ErrBusy
	}
	s.active = true
	s.started = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		summary, err := s.ctrl.Run(s.runCtx, cfg)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.active = false
		s.finished = time.Now()
		s.lastErr = ""
		if err != nil {
			s.lastErr = domain.Describe(err)
			if !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("Background run failed")
			}
		}
		s.last = &summary
	}()
	return nil
}
