package blobstore

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object returned by a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// CopyStatus is the state of a server-side copy operation. Backends that
// copy synchronously report StatusSuccess immediately; others report
// StatusPending until the copy lands.
type CopyStatus string

const (
	CopySuccess CopyStatus = "success"
	CopyPending CopyStatus = "pending"
	CopyFailed  CopyStatus = "failed"
)

// Store is the object-storage collaborator used by discovery, the artifact
// writer and the orchestrator. Implementations must be safe for concurrent
// use.
type Store interface {
	// ContainerExists reports whether the configured container exists.
	ContainerExists(ctx context.Context) (bool, error)

	// Walk iterates all objects under prefix in listing order, calling fn
	// for each. Returning false from fn stops the walk early.
	Walk(ctx context.Context, prefix string, fn func(ObjectInfo) bool) error

	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetText downloads an object and returns its contents as text.
	GetText(ctx context.Context, key string) (string, error)

	// PutText uploads text to key, overwriting any existing object.
	PutText(ctx context.Context, key string, text string) error

	// PutBytes uploads raw bytes to key, overwriting any existing object.
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error

	// Copy starts a server-side copy of src to dst and returns its status.
	Copy(ctx context.Context, src, dst string) (CopyStatus, error)

	// CopyState reports the current status of a copy targeting dst.
	CopyState(ctx context.Context, dst string) (CopyStatus, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// PresignedGetURL returns a time-bounded, read-capable URL for key.
	PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
