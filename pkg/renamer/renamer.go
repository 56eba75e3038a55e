// Package renamer is the public entry point: it assembles the rasterizer,
// extraction backends, cache, journal and batch controller from a
// config.Config.
package renamer

import (
	"context"
	"errors"
	"sync"

	"github.com/JR-coderli/SmartPdfRename/internal/cache"
	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/journal"
	"github.com/JR-coderli/SmartPdfRename/internal/llm"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
	"github.com/JR-coderli/SmartPdfRename/internal/pdf"
	"github.com/JR-coderli/SmartPdfRename/internal/pipeline"
	"github.com/JR-coderli/SmartPdfRename/internal/storage"
)

// Re-export types callers need without importing internal packages
type (
	FileView     = domain.FileView
	RenameConfig = domain.RenameConfig
	Summary      = pipeline.Summary
	Event        = pipeline.Event
	EventSink    = pipeline.EventSink
	Run          = journal.Run
)

// Event types delivered to an EventSink
const (
	EventBatchStart = pipeline.EventBatchStart
	EventFileStart  = pipeline.EventFileStart
	EventFileDone   = pipeline.EventFileDone
	EventBatchDone  = pipeline.EventBatchDone
)

// Options tunes what New builds
type Options struct {
	Logger *observability.Logger
	Sink   EventSink
}

// Renamer owns every long-lived component of one process
type Renamer struct {
	cfg      *config.Config
	logger   *observability.Logger
	ctrl     *pipeline.Controller
	cache    cache.Client    // nil when disabled
	journal  *journal.Store  // nil when disabled
	exporter *storage.Exporter

	mu         sync.Mutex
	extractors map[domain.ProviderKind]domain.Extractor
}

// New builds a Renamer. A cache or journal that cannot be opened is logged
// and left out; renames still work without them.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Renamer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	converter, err := pdf.NewConverter(cfg.Raster.Scale, cfg.Raster.Quality, logger)
	if err != nil {
		return nil, err
	}

	r := &Renamer{
		cfg:        cfg,
		logger:     logger.WithOperation("renamer"),
		exporter:   storage.NewExporter(cfg.Export.Dir),
		extractors: make(map[domain.ProviderKind]domain.Extractor),
	}

	r.cache = openCache(ctx, cfg.Cache, r.logger)

	var jr pipeline.Journal
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", cfg.Journal.Path).Msg("Journal unavailable, continuing without undo")
		} else {
			r.journal = store
			jr = store
		}
	}

	r.ctrl, err = pipeline.NewController(pipeline.Options{
		Rasterizer: converter,
		Extractors: r.extractor,
		Exporter:   r.exporter,
		Journal:    jr,
		Sink:       opts.Sink,
		Logger:     logger,
	})
	if err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig, logger *observability.Logger) cache.Client {
	switch cfg.Driver {
	case "memory":
		return cache.NewMemoryClient(cfg.MaxEntries)
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, extraction cache disabled")
			return nil
		}
		return client
	default:
		return nil
	}
}

// extractor returns the backend for kind, building it on first use
func (r *Renamer) extractor(kind domain.ProviderKind) (domain.Extractor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.extractors[kind]; ok {
		return e, nil
	}

	base, err := llm.NewExtractor(kind, r.cfg.Provider(kind), r.logger)
	if err != nil {
		return nil, err
	}

	var e domain.Extractor = base
	if r.cache != nil {
		e = llm.NewCachedExtractor(base, r.cache, r.cfg.Cache.TTL, r.logger)
	}
	r.extractors[kind] = e
	return e, nil
}

// Controller exposes the batch controller
func (r *Renamer) Controller() *pipeline.Controller {
	return r.ctrl
}

// Defaults returns the configured rename settings
func (r *Renamer) Defaults() RenameConfig {
	return r.cfg.Rename
}

// ExportDir is where files without a write capability are written
func (r *Renamer) ExportDir() string {
	return r.exporter.Dir()
}

// IngestLocation opens location and tracks every PDF directly inside it
func (r *Renamer) IngestLocation(ctx context.Context, location string) ([]FileView, error) {
	dir, err := storage.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	inputs, err := storage.Ingest(ctx, dir)
	if err != nil {
		storage.CloseDirectory(dir)
		return nil, err
	}
	views, err := r.ctrl.Ingest(inputs)
	// The controller owns the handle only through tracked files
	if err != nil || len(inputs) == 0 {
		storage.CloseDirectory(dir)
	}
	return views, err
}

// IngestFiles tracks individual files. Completed files are exported rather
// than renamed in place.
func (r *Renamer) IngestFiles(ctx context.Context, paths []string) ([]FileView, error) {
	inputs, err := storage.ReadFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	return r.ctrl.Ingest(inputs)
}

// Run processes the tracked files with cfg
func (r *Renamer) Run(ctx context.Context, cfg RenameConfig) (Summary, error) {
	return r.ctrl.Run(ctx, cfg)
}

// Files returns a snapshot of the tracked files
func (r *Renamer) Files() []FileView {
	return r.ctrl.Files()
}

// PurgeCache drops cached extraction records so the next run asks the
// provider again. It is a no-op when the cache is disabled.
func (r *Renamer) PurgeCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := llm.PurgeExtractions(ctx, r.cache); err != nil {
		return domain.IOError("purge extraction cache", err)
	}
	r.logger.Info().Msg("Extraction cache purged")
	return nil
}

// History lists recent runs, newest first
func (r *Renamer) History(ctx context.Context, limit int) ([]Run, error) {
	if r.journal == nil {
		return nil, errJournalDisabled
	}
	return r.journal.Runs(ctx, limit)
}

var errJournalDisabled = domain.ConfigError("rename journal is disabled", nil)

// Close releases the tracked directories, the cache and the journal
func (r *Renamer) Close() error {
	var errs []error
	if r.ctrl != nil {
		if err := r.ctrl.Clear(); err != nil {
			r.logger.Warn().Err(err).Msg("Tracked files not released")
		}
	}
	if r.cache != nil {
		errs = append(errs, r.cache.Close())
	}
	if r.journal != nil {
		errs = append(errs, r.journal.Close())
	}
	return errors.Join(errs...)
}
