package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

type fakeGCS struct {
	objects map[string][]byte
	deny    bool
	closed  bool
}

// Objects mimics a delimiter query: nested objects collapse into a
// synthetic prefix entry, which the real iterator reports without a name.
func (f *fakeGCS) Objects(_ context.Context, prefix string) ([]string, error) {
	if f.deny {
		return nil, &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}
	}
	var names []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && !strings.Contains(strings.TrimPrefix(k, prefix), "/") {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeGCS) NewReader(_ context.Context, object string) (io.ReadCloser, error) {
	data, ok := f.objects[object]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeGCS) NewWriter(_ context.Context, object, contentType string) io.WriteCloser {
	return &fakeGCSWriter{bucket: f, object: object}
}

func (f *fakeGCS) Delete(_ context.Context, object string) error {
	if _, ok := f.objects[object]; !ok {
		return storage.ErrObjectNotExist
	}
	delete(f.objects, object)
	return nil
}

func (f *fakeGCS) Close() error {
	f.closed = true
	return nil
}

// fakeGCSWriter only publishes the object on Close, like a resumable upload
type fakeGCSWriter struct {
	bucket *fakeGCS
	object string
	buf    bytes.Buffer
}

func (w *fakeGCSWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fakeGCSWriter) Close() error {
	if w.bucket.deny {
		return &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}
	}
	w.bucket.objects[w.object] = w.buf.Bytes()
	return nil
}

func TestGCSDirectory_CommitUnderPrefix(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGCS{objects: map[string][]byte{
		"inbox/scan.pdf":        []byte("pdf"),
		"inbox/Notes.PDF":       []byte("notes"),
		"inbox/readme.txt":      []byte("txt"),
		"inbox/archive/old.pdf": []byte("old"),
		"other/x.pdf":           []byte("x"),
	}}
	dir := newGCSDirectory(fake, "bills", "/inbox/")
	assert.Equal(t, "gs://bills/inbox", dir.Location())

	names, err := dir.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes.PDF", "readme.txt", "scan.pdf"}, names)

	inputs, err := Ingest(ctx, dir)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "Notes.PDF", inputs[0].Name)
	assert.Equal(t, []byte("pdf"), inputs[1].Content)

	require.NoError(t, Commit(ctx, dir, "scan.pdf", "2024-01-05_Acme_42.5.pdf", []byte("pdf")))
	assert.Equal(t, []byte("pdf"), fake.objects["inbox/2024-01-05_Acme_42.5.pdf"])
	assert.NotContains(t, fake.objects, "inbox/scan.pdf")
	assert.Contains(t, fake.objects, "inbox/archive/old.pdf")

	require.NoError(t, CloseDirectory(dir))
	assert.True(t, fake.closed)
}

func TestGCSDirectory_Errors(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGCS{objects: map[string][]byte{"a.pdf": []byte("pdf")}}
	dir := newGCSDirectory(fake, "bills", "")

	_, err := dir.Read(ctx, "missing.pdf")
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO), "got %v", err)

	err = dir.Remove(ctx, "missing.pdf")
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO), "got %v", err)

	_, err = dir.Read(ctx, "../a.pdf")
	assert.Error(t, err)

	fake.deny = true
	_, err = dir.List(ctx)
	assert.True(t, domain.IsType(err, domain.ErrorTypePermission), "got %v", err)

	err = Commit(ctx, dir, "a.pdf", "b.pdf", []byte("pdf"))
	assert.True(t, domain.IsType(err, domain.ErrorTypePermission), "got %v", err)
	assert.Contains(t, fake.objects, "a.pdf")
	assert.NotContains(t, fake.objects, "b.pdf")
}
