package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// recordingDir is an in-memory directory that records every call
type recordingDir struct {
	mu       sync.Mutex
	entries  map[string][]byte
	calls    []string
	writeErr error
	rmErr    error
}

func newRecordingDir(entries map[string][]byte) *recordingDir {
	if entries == nil {
		entries = map[string][]byte{}
	}
	return &recordingDir{entries: entries}
}

func (d *recordingDir) Location() string { return "mem://test" }

func (d *recordingDir) List(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "list")
	var names []string
	for n := range d.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (d *recordingDir) Read(_ context.Context, name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "read "+name)
	data, ok := d.entries[name]
	if !ok {
		return nil, domain.IOError("missing "+name, nil)
	}
	return data, nil
}

func (d *recordingDir) Write(_ context.Context, name string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "write "+name)
	if d.writeErr != nil {
		return d.writeErr
	}
	d.entries[name] = content
	return nil
}

func (d *recordingDir) Remove(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "remove "+name)
	if d.rmErr != nil {
		return d.rmErr
	}
	delete(d.entries, name)
	return nil
}
