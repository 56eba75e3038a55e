package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// gcsAPI is the subset of bucket operations the directory uses
type gcsAPI interface {
	// Objects returns the names of objects under prefix, not descending
	// past the next "/"
	Objects(ctx context.Context, prefix string) ([]string, error)
	NewReader(ctx context.Context, object string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
	Delete(ctx context.Context, object string) error
	Close() error
}

// gcsBucket implements gcsAPI over a storage client
type gcsBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func (b *gcsBucket) Objects(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		// Synthetic directory entries carry only Prefix
		if attrs.Name != "" {
			names = append(names, attrs.Name)
		}
	}
}

func (b *gcsBucket) NewReader(ctx context.Context, object string) (io.ReadCloser, error) {
	return b.bucket.Object(object).NewReader(ctx)
}

func (b *gcsBucket) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b *gcsBucket) Delete(ctx context.Context, object string) error {
	return b.bucket.Object(object).Delete(ctx)
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

// GCSDirectory is a directory capability over the objects directly under a
// bucket prefix
type GCSDirectory struct {
	api    gcsAPI
	name   string
	prefix string
}

// NewGCSDirectory opens bucket/prefix with application default credentials
func NewGCSDirectory(ctx context.Context, bucket, prefix string) (*GCSDirectory, error) {
	if bucket == "" {
		return nil, domain.ValidationError("gcs bucket is required", nil)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, domain.ConfigError("create gcs client", err)
	}

	return newGCSDirectory(&gcsBucket{client: client, bucket: client.Bucket(bucket)}, bucket, prefix), nil
}

func newGCSDirectory(api gcsAPI, bucket, prefix string) *GCSDirectory {
	return &GCSDirectory{
		api:    api,
		name:   bucket,
		prefix: normalizePrefix(prefix),
	}
}

// Location returns the gs:// address
func (d *GCSDirectory) Location() string {
	return Location{Scheme: SchemeGCS, Bucket: d.name, Prefix: d.prefix}.String()
}

// List returns object names directly under the prefix, sorted
func (d *GCSDirectory) List(ctx context.Context) ([]string, error) {
	base := listPrefix(d.prefix)
	objects, err := d.api.Objects(ctx, base)
	if err != nil {
		return nil, mapGCSError(fmt.Sprintf("gcs list bucket=%s prefix=%s", d.name, base), err)
	}

	var names []string
	for _, object := range objects {
		name := strings.TrimPrefix(object, base)
		if name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read downloads name
func (d *GCSDirectory) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	key := applyPrefix(d.prefix, name)
	r, err := d.api.NewReader(ctx, key)
	if err != nil {
		return nil, mapGCSError(fmt.Sprintf("gcs read bucket=%s object=%s", d.name, key), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mapGCSError(fmt.Sprintf("gcs read bucket=%s object=%s", d.name, key), err)
	}
	return data, nil
}

// Write uploads content under name. The object only appears once the
// writer is closed without error.
func (d *GCSDirectory) Write(ctx context.Context, name string, content []byte) error {
	if err := validName(name); err != nil {
		return err
	}

	key := applyPrefix(d.prefix, name)
	w := d.api.NewWriter(ctx, key, "application/pdf")

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return mapGCSError(fmt.Sprintf("gcs write bucket=%s object=%s", d.name, key), err)
	}
	if err := w.Close(); err != nil {
		return mapGCSError(fmt.Sprintf("gcs finalize bucket=%s object=%s", d.name, key), err)
	}
	return nil
}

// Remove deletes name
func (d *GCSDirectory) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	key := applyPrefix(d.prefix, name)
	if err := d.api.Delete(ctx, key); err != nil {
		return mapGCSError(fmt.Sprintf("gcs delete bucket=%s object=%s", d.name, key), err)
	}
	return nil
}

// Close releases the client
func (d *GCSDirectory) Close() error {
	return d.api.Close()
}

func mapGCSError(msg string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized) {
		return domain.PermissionError(msg, err)
	}
	return domain.IOError(msg, err)
}

var _ domain.Directory = (*GCSDirectory)(nil)
