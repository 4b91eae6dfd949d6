// Package cache stores digest artifacts by fingerprint and coordinates builds so that
// each fingerprint is built by at most one caller at a time.
package cache

import (
	"context"
	"time"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/types"
)

// Entry is one cached artifact.
type Entry struct {
	Artifact  types.DigestArtifact
	CreatedAt time.Time
	// Mutable marks artifacts built from a branch or tag, which can move.
	Mutable bool
}

// FreshAt reports whether the entry may still be served at now. Entries of immutable
// refs never expire; a non-positive window disables expiry.
func (entry *Entry) FreshAt(now time.Time, freshnessWindow time.Duration) bool {
	if entry == nil {
		return false
	}
	if !entry.Mutable || freshnessWindow <= 0 {
		return true
	}
	return now.Sub(entry.CreatedAt) < freshnessWindow
}

// Backend is a best-effort artifact store. Get returns nil and no error on a miss.
type Backend interface {
	Name() string
	Get(ctx context.Context, key fingerprint.Fingerprint) (*Entry, error)
	Put(ctx context.Context, key fingerprint.Fingerprint, entry Entry) error
}

// Closer is implemented by backends that hold open resources.
type Closer interface {
	Close() error
}

// Disabled is a backend that stores nothing.
type Disabled struct{}

// Name identifies the backend.
func (Disabled) Name() string { return "none" }

// Get always misses.
func (Disabled) Get(context.Context, fingerprint.Fingerprint) (*Entry, error) { return nil, nil }

// Put discards entry.
func (Disabled) Put(context.Context, fingerprint.Fingerprint, Entry) error { return nil }
