package offline

import (
	"maps"
	"net/http"
	"slices"
	"sync"
)

// Response is a cached or fetched HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status, matching the Fetch API's Response.ok.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy so cached bytes are never shared with callers.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   slices.Clone(r.Body),
	}
}

// Bucket is one named cache. Safe for concurrent use.
type Bucket struct {
	mu      sync.RWMutex
	entries map[string]*Response
}

func newBucket() *Bucket {
	return &Bucket{entries: make(map[string]*Response)}
}

// Match returns a copy of the entry stored for key.
func (b *Bucket) Match(key string) (*Response, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.entries[key]
	return r.Clone(), ok
}

// Put stores a copy of r under key, replacing any existing entry.
func (b *Bucket) Put(key string, r *Response) {
	c := r.Clone()
	b.mu.Lock()
	b.entries[key] = c
	b.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (b *Bucket) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.entries))
}

// Len returns the number of stored entries.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// CacheStorage holds every bucket of an origin. Safe for concurrent use.
type CacheStorage struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewCacheStorage returns an empty store.
func NewCacheStorage() *CacheStorage {
	return &CacheStorage{buckets: make(map[string]*Bucket)}
}

// Open returns the bucket called name, creating it if needed.
func (s *CacheStorage) Open(name string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		b = newBucket()
		s.buckets[name] = b
	}
	return b
}

// Has reports whether a bucket called name exists.
func (s *CacheStorage) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	return ok
}

// Delete removes the bucket called name and reports whether it existed.
func (s *CacheStorage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	delete(s.buckets, name)
	return ok
}

// Keys returns every bucket name in sorted order.
func (s *CacheStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.buckets))
}
