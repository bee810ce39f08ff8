package blobstore

import (
	"context"
	"time"

	"blobscribe/internal/app/model"
)

// DefaultPresignTTL keeps presigned audio URLs alive long enough for the
// remote service to fetch and process a long batch.
const DefaultPresignTTL = 24 * time.Hour

// PresignResolver produces read-capable URLs for work items by presigning
// against the backing store. Used when the bucket is private and no
// static access token applies.
type PresignResolver struct {
	store Store
	ttl   time.Duration
}

func NewPresignResolver(store Store, ttl time.Duration) *PresignResolver {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &PresignResolver{store: store, ttl: ttl}
}

func (r *PresignResolver) ResolveURL(ctx context.Context, item model.WorkItem) (string, error) {
	return r.store.PresignedGetURL(ctx, item.Path, r.ttl)
}
