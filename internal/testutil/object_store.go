package testutil

import (
	"context"
	"sync"
)

// MemObjectStore is an in-memory object store keyed by bucket and key.
type MemObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	// PutErr, when set, is returned by every Put.
	PutErr error
	// ExistsErr, when set, is returned by every Exists.
	ExistsErr error
}

// NewMemObjectStore returns an empty store.
func NewMemObjectStore() *MemObjectStore {
	return &MemObjectStore{objects: make(map[string][]byte)}
}

func objectID(bucket, key string) string { return bucket + "/" + key }

func (s *MemObjectStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExistsErr != nil {
		return false, s.ExistsErr
	}
	_, ok := s.objects[objectID(bucket, key)]
	return ok, nil
}

func (s *MemObjectStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.objects[objectID(bucket, key)] = append([]byte(nil), data...)
	s.puts++
	return nil
}

// Object returns the stored bytes.
func (s *MemObjectStore) Object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[objectID(bucket, key)]
	return b, ok
}

// Puts counts successful writes.
func (s *MemObjectStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Keys lists every stored object as bucket/key.
func (s *MemObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

//Personal.AI order the ending
