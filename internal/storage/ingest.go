package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/naming"
)

// Ingest reads every entry of dir whose name ends in ".pdf" in any case.
// Entries come back sorted by name with dir as their handle.
func Ingest(ctx context.Context, dir domain.Directory) ([]domain.Input, error) {
	names, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}

	var inputs []domain.Input
	for _, name := range names {
		if !naming.HasPDFSuffix(name) {
			continue
		}
		content, err := dir.Read(ctx, name)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, domain.Input{Name: name, Content: content, Handle: dir})
	}
	return inputs, nil
}

// ReadFiles loads individual files given on their own. The inputs carry no
// handle, so completed files go to the export directory instead of being
// renamed in place.
func ReadFiles(ctx context.Context, paths []string) ([]domain.Input, error) {
	inputs := make([]domain.Input, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, mapOSError(fmt.Sprintf("read %s", p), err)
		}
		inputs = append(inputs, domain.Input{Name: filepath.Base(p), Content: content})
	}
	return inputs, nil
}
