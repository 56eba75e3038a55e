package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/naming"
)

// Exporter writes renamed content into a fallback directory for files that
// arrived without a write capability. It never overwrites or deletes.
type Exporter struct {
	dir string
}

// NewExporter creates an exporter rooted at dir
func NewExporter(dir string) *Exporter {
	if strings.TrimSpace(dir) == "" {
		dir = "renamed"
	}
	return &Exporter{dir: dir}
}

// Dir returns the export directory
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes content as name, or as "name (N).pdf" when name is taken,
// and returns the name actually used and the path written.
func (e *Exporter) Export(ctx context.Context, name string, content []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if err := validName(name); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", "", mapOSError(fmt.Sprintf("create export dir %s", e.dir), err)
	}

	cr := naming.NewCollisionResolver()
	for attempt := 0; attempt < 1000; attempt++ {
		candidate := cr.Resolve(fmt.Sprintf("attempt-%d", attempt), name)
		path := filepath.Join(e.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", mapOSError(fmt.Sprintf("export %s", candidate), err)
		}

		if _, err := f.Write(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", "", mapOSError(fmt.Sprintf("export %s", candidate), err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", "", mapOSError(fmt.Sprintf("export %s", candidate), err)
		}
		return candidate, path, nil
	}

	return "", "", domain.IOError(fmt.Sprintf("no free export name for %s", name), nil)
}
