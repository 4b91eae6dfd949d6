package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/temirov/ingest/internal/fingerprint"
)

// DefaultMemoryEntries bounds a memory backend created with a non-positive size.
const DefaultMemoryEntries = 128

// MemoryBackend keeps the most recently used entries in process memory.
type MemoryBackend struct {
	entries *lru.Cache[fingerprint.Fingerprint, Entry]
}

// NewMemoryBackend creates a memory backend holding at most size entries.
func NewMemoryBackend(size int) (*MemoryBackend, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[fingerprint.Fingerprint, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("init memory cache: %w", err)
	}
	return &MemoryBackend{entries: entries}, nil
}

// Name identifies the backend.
func (backend *MemoryBackend) Name() string { return "memory" }

// Get returns the entry stored for key.
func (backend *MemoryBackend) Get(_ context.Context, key fingerprint.Fingerprint) (*Entry, error) {
	entry, ok := backend.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Put stores entry, evicting the least recently used entry when full.
func (backend *MemoryBackend) Put(_ context.Context, key fingerprint.Fingerprint, entry Entry) error {
	backend.entries.Add(key, entry)
	return nil
}

// Len returns the number of stored entries.
func (backend *MemoryBackend) Len() int {
	return backend.entries.Len()
}
