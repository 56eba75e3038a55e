package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// Scheme identifies a directory backend
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
)

// Location is a parsed directory address
type Location struct {
	Scheme Scheme
	Path   string // local only
	Bucket string // s3 and gs
	Prefix string // s3 and gs, without leading or trailing slash
}

// String renders the location in the form ParseLocation accepts
func (l Location) String() string {
	switch l.Scheme {
	case SchemeS3, SchemeGCS:
		if l.Prefix == "" {
			return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
		}
		return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
	default:
		return l.Path
	}
}

// ParseLocation accepts a filesystem path, file://path, s3://bucket/prefix
// or gs://bucket/prefix.
func ParseLocation(raw string) (Location, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Location{}, domain.ValidationError("location is empty", nil)
	}

	for _, scheme := range []Scheme{SchemeS3, SchemeGCS} {
		marker := string(scheme) + "://"
		if !strings.HasPrefix(strings.ToLower(s), marker) {
			continue
		}
		rest := s[len(marker):]
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, domain.ValidationError(fmt.Sprintf("location %q has no bucket", raw), nil)
		}
		return Location{Scheme: scheme, Bucket: bucket, Prefix: normalizePrefix(prefix)}, nil
	}

	s = strings.TrimPrefix(s, "file://")
	if s == "" {
		return Location{}, domain.ValidationError("location is empty", nil)
	}
	return Location{Scheme: SchemeLocal, Path: filepath.Clean(s)}, nil
}

// Open resolves location to a directory capability
func Open(ctx context.Context, location string) (domain.Directory, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeS3:
		return NewS3Directory(ctx, loc.Bucket, loc.Prefix)
	case SchemeGCS:
		return NewGCSDirectory(ctx, loc.Bucket, loc.Prefix)
	default:
		return NewLocalDirectory(loc.Path)
	}
}

// validName rejects names that would escape the directory
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.ValidationError(fmt.Sprintf("invalid entry name %q", name), nil)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

// listPrefix is the key prefix that selects immediate children
func listPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// CloseDirectory releases dir if its backend holds a client
func CloseDirectory(dir domain.Directory) error {
	if c, ok := dir.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
