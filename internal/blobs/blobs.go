// Package blobs is an in-process registry of transient image handles.
// Each handle is a URL that resolves to the uploaded bytes until it is revoked.
package blobs

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URLPrefix is the scheme and authority shared by all handle URLs.
const URLPrefix = "blob:collections/"

// ErrNotFound is returned when resolving a handle that was never created or already revoked.
var ErrNotFound = errors.New("blob handle not found")

// Blob is the content behind a handle.
type Blob struct {
	Bytes    []byte
	MIMEType string
}

// Store holds live handles. The zero value is not usable; call NewStore.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewStore creates an empty handle registry.
func NewStore() *Store {
	return &Store{blobs: make(map[string]Blob)}
}

// Create registers data and returns its handle URL.
func (s *Store) Create(data []byte, mimeType string) string {
	url := URLPrefix + uuid.NewString()

	s.mu.Lock()
	s.blobs[url] = Blob{Bytes: data, MIMEType: mimeType}
	s.mu.Unlock()

	return url
}

// Resolve returns the blob behind url.
func (s *Store) Resolve(url string) (Blob, error) {
	s.mu.RLock()
	b, ok := s.blobs[url]
	s.mu.RUnlock()

	if !ok {
		return Blob{}, ErrNotFound
	}

	return b, nil
}

// Revoke releases url. Revoking an unknown handle is a no-op and reports false.
func (s *Store) Revoke(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[url]; !ok {
		return false
	}

	delete(s.blobs, url)

	return true
}

// RevokeAll releases every handle in urls.
func (s *Store) RevokeAll(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range urls {
		delete(s.blobs, url)
	}
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blobs)
}

// IsHandle reports whether url has the handle URL shape.
func IsHandle(url string) bool {
	return strings.HasPrefix(url, URLPrefix)
}
