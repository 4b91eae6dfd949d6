package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/types"
)

const blobExtension = ".digest"

// FileBackend stores one blob per fingerprint on the local filesystem.
//
// Structure:
//
//	{Directory}/
//	  {fingerprint[0:2]}/
//	    {fingerprint}.digest
type FileBackend struct {
	Directory string
}

// NewFileBackend creates a filesystem backend rooted at directory.
func NewFileBackend(directory string) (*FileBackend, error) {
	if directory == "" {
		return nil, fmt.Errorf("%w: file cache directory is required", types.ErrCacheBackendUnavailable)
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating cache directory: %v", types.ErrCacheBackendUnavailable, err)
	}
	return &FileBackend{Directory: directory}, nil
}

// Name identifies the backend.
func (backend *FileBackend) Name() string { return "file" }

// Get reads the blob for key. A missing blob is a miss.
//
// #nosec G304
func (backend *FileBackend) Get(_ context.Context, key fingerprint.Fingerprint) (*Entry, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("invalid fingerprint %q", key)
	}
	data, err := os.ReadFile(backend.blobPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache blob: %w", err)
	}
	return DecodeEntry(key, data)
}

// Put writes the blob for key through a temporary file renamed into place, so
// readers never observe a partial blob.
func (backend *FileBackend) Put(_ context.Context, key fingerprint.Fingerprint, entry Entry) error {
	if !key.Valid() {
		return fmt.Errorf("invalid fingerprint %q", key)
	}
	finalPath := backend.blobPath(key)
	shardDirectory := filepath.Dir(finalPath)
	if err := os.MkdirAll(shardDirectory, 0o750); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	temporaryFile, err := os.CreateTemp(shardDirectory, key.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	temporaryPath := temporaryFile.Name()
	cleanup := func() { _ = os.Remove(temporaryPath) }

	if _, err := temporaryFile.Write(EncodeEntry(key, entry)); err != nil {
		_ = temporaryFile.Close()
		cleanup()
		return fmt.Errorf("writing temp blob: %w", err)
	}
	if err := temporaryFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp blob: %w", err)
	}
	if err := os.Rename(temporaryPath, finalPath); err != nil {
		cleanup()
		return fmt.Errorf("committing cache blob: %w", err)
	}
	return nil
}

func (backend *FileBackend) blobPath(key fingerprint.Fingerprint) string {
	return filepath.Join(backend.Directory, key.Shard(), key.String()+blobExtension)
}
