package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects and resolves the public URL they are served from.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	URL(key string) string
}
