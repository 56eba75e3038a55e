// Package pipeline drives ingested PDFs through rasterize, extract, name
// and commit, one file at a time, isolating each file's failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/journal"
	"github.com/JR-coderli/SmartPdfRename/internal/naming"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
	"github.com/JR-coderli/SmartPdfRename/internal/storage"
)

// ErrBusy is returned when the file list is changed or a run is started
// while another run is in progress.
var ErrBusy = errors.New("a batch run is already in progress")

// Input is one ingested entry
type Input = domain.Input

// Failure prefixes attached to a file's error
const (
	prefixDecode  = "decode failed: "
	prefixExtract = "extraction failed: "
	prefixWrite   = "write failed: "
)

// exportKey groups handle-less files for collision resolution
const exportKey = "\x00export"

// ExtractorFactory returns the extractor for a provider
type ExtractorFactory func(kind domain.ProviderKind) (domain.Extractor, error)

// Exporter writes content for files without a write handle
type Exporter interface {
	Export(ctx context.Context, name string, content []byte) (written, path string, err error)
}

// Journal records committed renames
type Journal interface {
	StartRun(ctx context.Context, info journal.RunInfo) (string, error)
	Record(ctx context.Context, runID, location, oldName, newName string) error
	FinishRun(ctx context.Context, runID string, completed, failed int) error
}

// Options configures a Controller
type Options struct {
	Rasterizer domain.Rasterizer
	Extractors ExtractorFactory
	Exporter   Exporter // defaults to ./renamed
	Journal    Journal  // optional
	Sink       EventSink
	Logger     *observability.Logger
}

// Controller owns the tracked file list. Only Run mutates files; snapshots
// taken through Files are copies.
type Controller struct {
	rasterizer domain.Rasterizer
	extractors ExtractorFactory
	exporter   Exporter
	journal    Journal
	sink       EventSink
	logger     *observability.Logger

	mu      sync.RWMutex
	files   []*domain.TrackedFile
	running bool
}

// NewController creates a controller
func NewController(opts Options) (*Controller, error) {
	if opts.Rasterizer == nil {
		return nil, domain.ConfigError("rasterizer is required", nil)
	}
	if opts.Extractors == nil {
		return nil, domain.ConfigError("extractor factory is required", nil)
	}
	if opts.Exporter == nil {
		opts.Exporter = storage.NewExporter("")
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Controller{
		rasterizer: opts.Rasterizer,
		extractors: opts.Extractors,
		exporter:   opts.Exporter,
		journal:    opts.Journal,
		sink:       opts.Sink,
		logger:     opts.Logger.WithOperation("pipeline"),
	}, nil
}

// Ingest replaces the tracked list with inputs, in order
func (c *Controller) Ingest(inputs []Input) ([]domain.FileView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrBusy
	}

	files := make([]*domain.TrackedFile, 0, len(inputs))
	for _, in := range inputs {
		files = append(files, domain.NewTrackedFile(uuid.NewString(), in.Name, in.Content, in.Handle))
	}
	c.releaseHandles(c.files, files)
	c.files = files

	c.logger.Info().Int("files", len(files)).Msg("Ingested files")
	return c.snapshotLocked(), nil
}

// Clear discards every tracked file
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrBusy
	}
	c.releaseHandles(c.files, nil)
	c.files = nil
	return nil
}

// releaseHandles closes the directory handles of old that no file in kept
// still uses.
func (c *Controller) releaseHandles(old, kept []*domain.TrackedFile) {
	inUse := make(map[domain.Directory]bool)
	for _, f := range kept {
		if f.Handle != nil {
			inUse[f.Handle] = true
		}
	}

	for _, f := range old {
		h := f.Handle
		if h == nil || inUse[h] {
			continue
		}
		inUse[h] = true
		if closer, ok := h.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Warn().Err(err).Str("location", h.Location()).Msg("Closing directory failed")
			}
		}
	}
}

// Files returns a snapshot of the tracked list
func (c *Controller) Files() []domain.FileView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Running reports whether a batch is in progress
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) snapshotLocked() []domain.FileView {
	views := make([]domain.FileView, len(c.files))
	for i, f := range c.files {
		views[i] = f.View()
	}
	return views
}

// Run processes every non-completed file once, in ingestion order. Per-file
// failures are recorded on the file and never abort the batch. The returned
// error covers only problems that prevent the batch from starting, or a
// cancelled context, in which case unprocessed files stay Pending.
func (c *Controller) Run(ctx context.Context, cfg domain.RenameConfig) (Summary, error) {
	kind, err := domain.ParseProviderKind(string(cfg.Provider))
	if err != nil {
		return Summary{}, err
	}
	extractor, err := c.extractors(kind)
	if err != nil {
		return Summary{}, err
	}

	files, err := c.begin(cfg)
	if err != nil {
		return Summary{}, err
	}
	defer c.end()

	start := time.Now()
	rs := &runState{
		cfg:       cfg,
		extractor: extractor,
		total:     len(files),
	}
	rs.id, rs.journaled = c.startJournal(ctx, files, cfg, kind)
	rs.log = c.logger.WithRun(rs.id)
	summary := Summary{RunID: rs.id, Total: len(files)}
	log := rs.log

	log.Info().
		Int("files", len(files)).
		Str("provider", extractor.Name()).
		Str("template", cfg.Template).
		Bool("dry_run", cfg.DryRun).
		Msg("Batch started")
	c.emit(Event{Type: EventBatchStart, RunID: rs.id, Index: -1, Total: len(files)})

	rs.resolvers = c.seedResolvers(files)

	var runErr error
	for i, f := range files {
		if c.status(f) == domain.StatusCompleted {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			log.Warn().Err(err).Int("remaining", len(files)-i).Msg("Batch cancelled")
			break
		}

		summary.Attempted++
		c.processFile(ctx, rs, i, f)

		view := c.view(f)
		switch view.Status {
		case domain.StatusCompleted:
			summary.Completed++
			if view.DryRun {
				summary.DryRun++
			}
			if view.ExportedTo != "" {
				summary.Exported++
			}
		case domain.StatusFailed:
			summary.Failed++
		}
		c.emit(Event{Type: EventFileDone, RunID: rs.id, Index: i, Total: len(files), File: view})
	}

	summary.Duration = time.Since(start)
	if rs.journaled {
		c.finishJournal(summary)
	}

	log.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Batch finished")
	c.emit(Event{Type: EventBatchDone, RunID: rs.id, Index: -1, Total: len(files), Summary: &summary})

	return summary, runErr
}

// begin marks the controller running and resets files left over from an
// interrupted or preview run
func (c *Controller) begin(cfg domain.RenameConfig) ([]*domain.TrackedFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrBusy
	}
	c.running = true

	for _, f := range c.files {
		switch {
		case f.Status == domain.StatusProcessing:
			f.Status = domain.StatusPending
		case f.Status == domain.StatusCompleted && f.DryRun && !cfg.DryRun:
			resetFile(f)
		}
	}

	files := make([]*domain.TrackedFile, len(c.files))
	copy(files, c.files)
	return files, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// seedResolvers reserves the names each file currently occupies, per directory
func (c *Controller) seedResolvers(files []*domain.TrackedFile) map[string]*naming.CollisionResolver {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resolvers := make(map[string]*naming.CollisionResolver)
	for _, f := range files {
		r := resolverFor(resolvers, f)
		if f.Status == domain.StatusCompleted {
			r.Reserve(f.ID, f.NewName)
		} else {
			r.Reserve(f.ID, f.OriginalName)
		}
	}
	return resolvers
}

func resolverFor(resolvers map[string]*naming.CollisionResolver, f *domain.TrackedFile) *naming.CollisionResolver {
	key := exportKey
	if f.Handle != nil {
		key = f.Handle.Location()
	}
	r, ok := resolvers[key]
	if !ok {
		r = naming.NewCollisionResolver()
		resolvers[key] = r
	}
	return r
}

// runState is shared by the files of one Run
type runState struct {
	id        string
	journaled bool
	cfg       domain.RenameConfig
	extractor domain.Extractor
	resolvers map[string]*naming.CollisionResolver
	total     int
	log       *observability.Logger
}

// processFile runs the per-file procedure. Every outcome is recorded on f.
func (c *Controller) processFile(ctx context.Context, rs *runState, index int, f *domain.TrackedFile) {
	cfg := rs.cfg

	c.update(f, func(f *domain.TrackedFile) {
		f.Status = domain.StatusProcessing
		f.Error = ""
	})
	c.emit(Event{Type: EventFileStart, RunID: rs.id, Index: index, Total: rs.total, File: c.view(f)})

	flog := rs.log.WithFile(f.OriginalName, index)

	image, err := c.rasterizer.Rasterize(ctx, f.Content)
	if err != nil {
		c.fail(flog, f, prefixDecode, err)
		return
	}

	fields, err := rs.extractor.Extract(ctx, image)
	if err != nil {
		c.fail(flog, f, prefixExtract, err)
		return
	}

	resolver := resolverFor(rs.resolvers, f)
	name := resolver.Resolve(f.ID, naming.Build(cfg.Template, cfg.SanitizeEnabled, fields))

	var exportedTo string
	switch {
	case cfg.DryRun:
	case f.Handle != nil:
		if err := storage.Commit(ctx, f.Handle, f.OriginalName, name, f.Content); err != nil {
			// The new entry stays claimed if it reached the directory.
			var kept *storage.OriginalKeptError
			if name != f.OriginalName && !errors.As(err, &kept) {
				resolver.Release(f.ID, name)
			}
			c.fail(flog, f, prefixWrite, err)
			return
		}
		if name != f.OriginalName {
			resolver.Release(f.ID, f.OriginalName)
		}
		if rs.journaled && name != f.OriginalName {
			if err := c.journal.Record(ctx, rs.id, f.Handle.Location(), f.OriginalName, name); err != nil {
				flog.Warn().Err(err).Msg("Journal record failed")
			}
		}
	default:
		written, path, err := c.exporter.Export(ctx, name, f.Content)
		if err != nil {
			resolver.Release(f.ID, name)
			c.fail(flog, f, prefixWrite, err)
			return
		}
		if written != name {
			flog.Debug().Str("requested", name).Str("written", written).Msg("Export name taken")
			resolver.Reserve(f.ID, written)
			name = written
		}
		exportedTo = path
	}

	c.update(f, func(f *domain.TrackedFile) {
		f.Status = domain.StatusCompleted
		f.Extracted = fields
		f.NewName = name
		f.Committed = !cfg.DryRun && f.Handle != nil
		f.ExportedTo = exportedTo
		f.DryRun = cfg.DryRun
	})

	flog.Info().
		Str("new_name", name).
		Bool("dry_run", cfg.DryRun).
		Msg("File completed")
}

func (c *Controller) fail(log *observability.Logger, f *domain.TrackedFile, prefix string, err error) {
	msg := prefix + domain.Describe(err)
	c.update(f, func(f *domain.TrackedFile) {
		resetFile(f)
		f.Status = domain.StatusFailed
		f.Error = msg
	})
	log.Warn().Err(err).Str("error_kind", failureKind(err)).Msg("File failed")
}

func failureKind(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return string(de.Type)
	}
	return fmt.Sprintf("%T", err)
}

// resetFile returns f to Pending with no outcome
func resetFile(f *domain.TrackedFile) {
	f.Status = domain.StatusPending
	f.Error = ""
	f.Extracted = nil
	f.NewName = f.OriginalName
	f.Committed = false
	f.ExportedTo = ""
	f.DryRun = false
}

func (c *Controller) update(f *domain.TrackedFile, fn func(*domain.TrackedFile)) {
	c.mu.Lock()
	fn(f)
	c.mu.Unlock()
}

func (c *Controller) view(f *domain.TrackedFile) domain.FileView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return f.View()
}

func (c *Controller) status(f *domain.TrackedFile) domain.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return f.Status
}

func (c *Controller) emit(e Event) {
	if c.sink != nil {
		c.sink(e)
	}
}

// startJournal opens a journal run and reports whether renames will be recorded
func (c *Controller) startJournal(ctx context.Context, files []*domain.TrackedFile, cfg domain.RenameConfig, kind domain.ProviderKind) (string, bool) {
	if c.journal == nil {
		return uuid.NewString(), false
	}

	location := "export"
	for _, f := range files {
		if f.Handle != nil {
			location = f.Handle.Location()
			break
		}
	}

	runID, err := c.journal.StartRun(ctx, journal.RunInfo{
		Location: location,
		Provider: string(kind),
		Template: cfg.Template,
		DryRun:   cfg.DryRun,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Journal unavailable, renames will not be undoable")
		return uuid.NewString(), false
	}
	return runID, true
}

func (c *Controller) finishJournal(s Summary) {
	if c.journal == nil {
		return
	}
	// The run is finished even if the caller's context was cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.journal.FinishRun(ctx, s.RunID, s.Completed, s.Failed); err != nil {
		c.logger.Debug().Err(err).Str("run_id", s.RunID).Msg("Journal finish failed")
	}
}
