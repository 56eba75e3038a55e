package renamer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/journal"
	"github.com/JR-coderli/SmartPdfRename/internal/storage"
)

// ErrNothingToUndo is returned when no run qualifies for undo
var ErrNothingToUndo = errors.New("no run to undo")

// UndoFailure is an entry that could not be restored
type UndoFailure struct {
	Entry journal.Entry
	Error string
}

// UndoResult reports what Undo restored
type UndoResult struct {
	RunID    string
	Restored int
	Skipped  int // already back under the original name
	Failures []UndoFailure
}

// Undo reverts the renames of runID, newest first, through the same commit
// used for renaming. An empty runID selects the latest run that has renames
// and was not undone. The run is marked undone only when every entry was
// restored.
func (r *Renamer) Undo(ctx context.Context, runID string) (UndoResult, error) {
	if r.journal == nil {
		return UndoResult{}, errJournalDisabled
	}

	run, err := r.undoTarget(ctx, runID)
	if err != nil {
		return UndoResult{}, err
	}

	entries, err := r.journal.Entries(ctx, run.ID)
	if err != nil {
		return UndoResult{}, err
	}

	log := r.logger.WithRun(run.ID)
	result := UndoResult{RunID: run.ID}
	dirs := newDirSet()
	defer dirs.close()

	for i := len(entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e := entries[i]
		restored, err := r.restore(ctx, dirs, e)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("file", e.NewName).Msg("Undo failed")
			result.Failures = append(result.Failures, UndoFailure{Entry: e, Error: domain.Describe(err)})
		case restored:
			result.Restored++
		default:
			result.Skipped++
		}
	}

	if len(result.Failures) == 0 {
		if err := r.journal.MarkUndone(ctx, run.ID); err != nil {
			return result, err
		}
	}

	log.Info().
		Int("restored", result.Restored).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failures)).
		Msg("Undo finished")
	return result, nil
}

func (r *Renamer) undoTarget(ctx context.Context, runID string) (journal.Run, error) {
	if runID == "" {
		run, err := r.journal.LatestUndoable(ctx)
		if errors.Is(err, journal.ErrRunNotFound) {
			return journal.Run{}, ErrNothingToUndo
		}
		return run, err
	}

	run, err := r.journal.GetRun(ctx, runID)
	if err != nil {
		return journal.Run{}, err
	}
	if run.UndoneAt != nil {
		return journal.Run{}, domain.ValidationError(fmt.Sprintf("run %s was already undone", runID), nil)
	}
	if run.Renames == 0 {
		return journal.Run{}, ErrNothingToUndo
	}
	return run, nil
}

// restore moves e.NewName back to e.OldName. It reports false when the
// entry is already back under its original name.
func (r *Renamer) restore(ctx context.Context, dirs *dirSet, e journal.Entry) (bool, error) {
	dir, names, err := dirs.open(ctx, e.Location)
	if err != nil {
		return false, err
	}

	caseOnly := strings.EqualFold(e.OldName, e.NewName)
	if !names[e.NewName] {
		if names[e.OldName] {
			return false, nil
		}
		return false, domain.IOError(fmt.Sprintf("%s no longer exists", e.NewName), nil)
	}
	if names[e.OldName] && !caseOnly {
		return false, domain.IOError(fmt.Sprintf("%s is taken by another file", e.OldName), nil)
	}

	content, err := dir.Read(ctx, e.NewName)
	if err != nil {
		return false, err
	}
	if err := storage.Commit(ctx, dir, e.NewName, e.OldName, content); err != nil {
		return false, err
	}

	delete(names, e.NewName)
	names[e.OldName] = true
	return true, nil
}

// dirSet opens each location once and remembers its entries
type dirSet struct {
	dirs  map[string]domain.Directory
	names map[string]map[string]bool
}

func newDirSet() *dirSet {
	return &dirSet{
		dirs:  make(map[string]domain.Directory),
		names: make(map[string]map[string]bool),
	}
}

func (s *dirSet) open(ctx context.Context, location string) (domain.Directory, map[string]bool, error) {
	if dir, ok := s.dirs[location]; ok {
		return dir, s.names[location], nil
	}

	dir, err := storage.Open(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	list, err := dir.List(ctx)
	if err != nil {
		storage.CloseDirectory(dir)
		return nil, nil, err
	}

	names := make(map[string]bool, len(list))
	for _, n := range list {
		names[n] = true
	}
	s.dirs[location] = dir
	s.names[location] = names
	return dir, names, nil
}

func (s *dirSet) close() {
	for _, dir := range s.dirs {
		storage.CloseDirectory(dir)
	}
}
