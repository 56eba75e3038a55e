package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// LocalDirectory is a directory capability on the local filesystem
type LocalDirectory struct {
	dir string
}

// NewLocalDirectory opens dir, which must exist and be a directory. The
// location is kept absolute so journal entries survive a change of cwd.
func NewLocalDirectory(dir string) (*LocalDirectory, error) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, mapOSError(fmt.Sprintf("open %s", dir), err)
	}
	if !info.IsDir() {
		return nil, domain.ValidationError(fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return &LocalDirectory{dir: dir}, nil
}

// Location returns the directory path
func (d *LocalDirectory) Location() string {
	return d.dir
}

// List returns regular file names in the directory, sorted
func (d *LocalDirectory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, mapOSError("list directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of name
func (d *LocalDirectory) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return nil, mapOSError(fmt.Sprintf("read %s", name), err)
	}
	return data, nil
}

// Write stores content under name. The data is staged in a temporary file
// in the same directory and moved into place, so a failed write never
// leaves a truncated entry behind.
func (d *LocalDirectory) Write(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, ".pdfrn-*.tmp")
	if err != nil {
		return mapOSError(fmt.Sprintf("write %s", name), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mapOSError(fmt.Sprintf("write %s", name), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mapOSError(fmt.Sprintf("write %s", name), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return mapOSError(fmt.Sprintf("write %s", name), err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.dir, name)); err != nil {
		os.Remove(tmpName)
		return mapOSError(fmt.Sprintf("write %s", name), err)
	}
	return nil
}

// Remove deletes name
func (d *LocalDirectory) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
		return mapOSError(fmt.Sprintf("remove %s", name), err)
	}
	return nil
}

// Rename moves oldName to newName in place
func (d *LocalDirectory) Rename(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(oldName); err != nil {
		return err
	}
	if err := validName(newName); err != nil {
		return err
	}

	if err := os.Rename(filepath.Join(d.dir, oldName), filepath.Join(d.dir, newName)); err != nil {
		return mapOSError(fmt.Sprintf("rename %s", oldName), err)
	}
	return nil
}

func mapOSError(msg string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return domain.PermissionError(msg, err)
	}
	return domain.IOError(msg, err)
}

var (
	_ domain.Directory = (*LocalDirectory)(nil)
	_ domain.Renamer   = (*LocalDirectory)(nil)
)
