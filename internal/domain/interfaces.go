package domain

import "context"

// Rasterizer turns the first page of a PDF into a compressed image
type Rasterizer interface {
	// Rasterize returns JPEG bytes for page 1 of pdfBytes
	Rasterize(ctx context.Context, pdfBytes []byte) ([]byte, error)
}

// Extractor turns an invoice image into structured fields
type Extractor interface {
	// Extract submits the image to the backend and returns the parsed record
	Extract(ctx context.Context, image []byte) (*InvoiceFields, error)

	// Name identifies the backend in logs and cache keys
	Name() string
}

// Directory is a write capability over the immediate entries of one directory.
// Implementations exist for local disk and object stores.
type Directory interface {
	// Location is the address the capability was opened from (path, s3://, gs://)
	Location() string

	// List returns the names of immediate child entries
	List(ctx context.Context) ([]string, error)

	// Read returns the content of a child entry
	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates or overwrites a child entry
	Write(ctx context.Context, name string, content []byte) error

	// Remove deletes a child entry
	Remove(ctx context.Context, name string) error
}

// Renamer is implemented by directories that can move an entry in place.
// Commit uses it for renames that differ only in letter case, which a
// write-then-remove would turn into a delete on case-insensitive filesystems.
type Renamer interface {
	Rename(ctx context.Context, oldName, newName string) error
}
