// Package blob provides image storage for photo uploads. The core treats
// it purely as upload(bytes) -> url. The in-memory implementation is the
// development fallback: uploaded images live in process memory, are served
// back from a local endpoint, and old entries are evicted once the store
// grows past a soft cap.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidImageData is returned when the payload is not a base64 data URI
var ErrInvalidImageData = errors.New("blob: invalid image data format")

// Store uploads image bytes and returns a resolvable URL
type Store interface {
	Put(ctx context.Context, imageData, fileName string) (string, error)
}

const (
	// evictAfter is how long a dev blob is kept once the store is over its cap
	evictAfter = 24 * time.Hour
	// softCap is the entry count past which eviction kicks in
	softCap = 100
)

type entry struct {
	data      []byte
	mimeType  string
	createdAt time.Time
}

// MemoryStore keeps blobs in process memory. Contents do not survive a
// restart; photo URLs pointing here dangle after one, which the
// presentation layer tolerates.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	baseURL string
	now     func() time.Time
}

// NewMemoryStore creates a dev blob store serving URLs under baseURL
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Put decodes a base64 data URI and stores the bytes under a fresh key.
// Returns the URL the image can be fetched from.
func (s *MemoryStore) Put(_ context.Context, imageData, fileName string) (string, error) {
	if fileName == "" {
		return "", ErrInvalidImageData
	}
	data, mimeType, err := decodeDataURI(imageData)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%d-%s", s.now().UnixMilli(), uuid.NewString()[:9])

	s.mu.Lock()
	s.entries[key] = &entry{data: data, mimeType: mimeType, createdAt: s.now()}
	if len(s.entries) > softCap {
		s.evictLocked()
	}
	s.mu.Unlock()

	return fmt.Sprintf("%s/api/blob?key=%s", s.baseURL, key), nil
}

// Get returns the stored bytes and mime type for a key
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, "", false
	}
	return e.data, e.mimeType, true
}

// Len reports how many blobs are currently held
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked drops entries older than the retention window
func (s *MemoryStore) evictLocked() {
	cutoff := s.now().Add(-evictAfter)
	for key, e := range s.entries {
		if e.createdAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// decodeDataURI splits "data:image/jpeg;base64,...." into bytes and mime type
func decodeDataURI(imageData string) ([]byte, string, error) {
	if !strings.HasPrefix(imageData, "data:") {
		return nil, "", ErrInvalidImageData
	}
	header, payload, found := strings.Cut(imageData, ",")
	if !found || payload == "" {
		return nil, "", ErrInvalidImageData
	}

	mimeType := "image/jpeg"
	meta := strings.TrimPrefix(header, "data:")
	if mt, _, ok := strings.Cut(meta, ";"); ok && mt != "" {
		mimeType = mt
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidImageData
	}
	return data, mimeType, nil
}
