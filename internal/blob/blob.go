// Package blob contains a blob store interface for stored images.
package blob

import (
	"context"
	"fmt"
)

// ErrNotFound ...
var ErrNotFound = fmt.Errorf("not found")

// Store provides content storage keyed by opaque references.
type Store interface {
	// Put stores data under a fresh reference within the given namespace
	// prefix and returns the reference.
	Put(ctx context.Context, prefix string, data []byte) (string, error)
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes stored content. Deleting an unknown reference is not an
	// error.
	Delete(ctx context.Context, ref string) error
}
