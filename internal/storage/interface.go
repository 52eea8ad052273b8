package storage

import (
	"context"
	"io"
)

// Storage uploads objects. metadata is stored alongside the object and may
// be nil.
type Storage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string, metadata map[string]string) error
}
