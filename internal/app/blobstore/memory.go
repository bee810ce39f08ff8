package blobstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local dry-runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// CopyPendingChecks makes CopyState report pending that many times per
	// destination before reporting success. Tests use it to exercise the
	// bounded archival wait.
	CopyPendingChecks int
	pendingSeen       map[string]int

	// FailCopies makes every Copy report failure without moving data.
	FailCopies bool
}

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:     make(map[string]memoryObject),
		pendingSeen: make(map[string]int),
	}
}

// Seed adds an object without going through the Store interface.
func (s *MemoryStore) Seed(key string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: []byte(data), lastModified: time.Now()}
}

// Keys returns all object keys in listing order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore) ContainerExists(ctx context.Context) (bool, error) {
	return true, nil
}

func (s *MemoryStore) Walk(ctx context.Context, prefix string, fn func(ObjectInfo) bool) error {
	for _, key := range s.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		s.mu.RLock()
		obj := s.objects[key]
		s.mu.RUnlock()
		if !fn(ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified}) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) GetText(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return string(obj.data), nil
}

func (s *MemoryStore) PutText(ctx context.Context, key string, text string) error {
	return s.PutBytes(ctx, key, []byte(text), "text/plain; charset=utf-8")
}

func (s *MemoryStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType, lastModified: time.Now()}
	return nil
}

func (s *MemoryStore) Copy(ctx context.Context, src, dst string) (CopyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCopies {
		return CopyFailed, nil
	}

	obj, ok := s.objects[src]
	if !ok {
		return CopyFailed, fmt.Errorf("object not found: %s", src)
	}
	s.objects[dst] = memoryObject{data: obj.data, contentType: obj.contentType, lastModified: time.Now()}

	if s.CopyPendingChecks > 0 {
		return CopyPending, nil
	}
	return CopySuccess, nil
}

func (s *MemoryStore) CopyState(ctx context.Context, dst string) (CopyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CopyPendingChecks > 0 && s.pendingSeen[dst] < s.CopyPendingChecks {
		s.pendingSeen[dst]++
		return CopyPending, nil
	}
	if _, ok := s.objects[dst]; ok {
		return CopySuccess, nil
	}
	return CopyPending, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://memory.local/bucket/%s?sig=test", key), nil
}
