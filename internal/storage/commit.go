package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// Commit writes content under newName in dir, then removes oldName if the
// name changed. The old entry is only removed after the write succeeded.
// Errors are PermissionError when access was denied, IOError otherwise.
func Commit(ctx context.Context, dir domain.Directory, oldName, newName string, content []byte) error {
	if dir == nil {
		return domain.ValidationError("no directory capability", nil)
	}

	// Case-only change: a write would land on the same entry where the
	// filesystem ignores case, and the remove would then delete it.
	if oldName != newName && strings.EqualFold(oldName, newName) {
		if r, ok := dir.(domain.Renamer); ok {
			return classify(r.Rename(ctx, oldName, newName))
		}
	}

	if err := dir.Write(ctx, newName, content); err != nil {
		return classify(err)
	}

	if newName == oldName {
		return nil
	}

	if err := dir.Remove(ctx, oldName); err != nil {
		return &OriginalKeptError{Err: classify(err)}
	}
	return nil
}

// OriginalKeptError is returned by Commit when the new entry was written but
// the original could not be removed. Both names then exist in the directory.
type OriginalKeptError struct {
	Err error
}

func (e *OriginalKeptError) Error() string { return e.Err.Error() }

func (e *OriginalKeptError) Unwrap() error { return e.Err }

// classify keeps permission errors and folds everything else into IOError
func classify(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsType(err, domain.ErrorTypePermission) || domain.IsType(err, domain.ErrorTypeIO) {
		return err
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return domain.IOError(de.Message, de.Err)
	}
	return domain.IOError("storage operation failed", err)
}
