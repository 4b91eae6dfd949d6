package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/types"
)

const (
	testFingerprint  fingerprint.Fingerprint = "0123456789abcdef0123456789abcdef"
	otherFingerprint fingerprint.Fingerprint = "fedcba9876543210fedcba9876543210"
)

func sampleEntry(key fingerprint.Fingerprint) Entry {
	createdAt := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	tokens := 1234
	return Entry{
		CreatedAt: createdAt,
		Mutable:   true,
		Artifact: types.DigestArtifact{
			Source:      "https://github.com/octo/widgets",
			Ref:         "main",
			Fingerprint: key.String(),
			CreatedAt:   createdAt,
			Summary:     "Repository: octo/widgets\nFiles analyzed: 1\n",
			Tree:        "Directory structure:\n└── widgets/\n    └── main.go\n",
			Content:     "================================================\nFILE: main.go\n================================================\npackage main\n\n\n",
			Stats: types.DigestStats{
				FilesAnalyzed:   1,
				TotalSize:       13,
				EstimatedTokens: &tokens,
				Truncated:       true,
				Notices:         []string{"file count limit of 1 reached at b.go"},
			},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	entry := sampleEntry(testFingerprint)
	decoded, err := DecodeEntry(testFingerprint, EncodeEntry(testFingerprint, entry))
	require.NoError(t, err)
	require.Equal(t, entry, *decoded)
}

func TestCodecWithoutTokens(t *testing.T) {
	entry := sampleEntry(testFingerprint)
	entry.Artifact.Stats.EstimatedTokens = nil
	entry.Artifact.Stats.Notices = nil
	blob := EncodeEntry(testFingerprint, entry)
	require.Contains(t, string(blob), "\ntokens: -\n")
	decoded, err := DecodeEntry(testFingerprint, blob)
	require.NoError(t, err)
	require.Nil(t, decoded.Artifact.Stats.EstimatedTokens)
}

func TestCodecRejectsCorruptBlobs(t *testing.T) {
	valid := EncodeEntry(testFingerprint, sampleEntry(testFingerprint))
	testCases := map[string][]byte{
		"empty":           nil,
		"wrong magic":     append([]byte("other v9\n"), valid[len(blobMagic)+1:]...),
		"truncated body":  valid[:len(valid)-5],
		"extra body":      append(append([]byte(nil), valid...), 'x'),
		"no terminator":   []byte(blobMagic + "\nfingerprint: " + testFingerprint.String()),
		"bad header line": []byte(blobMagic + "\nnonsense\n\n"),
	}
	for name, blob := range testCases {
		_, err := DecodeEntry(testFingerprint, blob)
		require.ErrorIs(t, err, types.ErrCacheEntryCorrupt, name)
	}

	_, err := DecodeEntry(otherFingerprint, valid)
	require.ErrorIs(t, err, types.ErrCacheEntryCorrupt)
}

func TestEntryFreshness(t *testing.T) {
	entry := sampleEntry(testFingerprint)
	require.True(t, entry.FreshAt(entry.CreatedAt.Add(59*time.Minute), time.Hour))
	require.False(t, entry.FreshAt(entry.CreatedAt.Add(time.Hour), time.Hour))

	entry.Mutable = false
	require.True(t, entry.FreshAt(entry.CreatedAt.Add(24*365*time.Hour), time.Hour))

	var missing *Entry
	require.False(t, missing.FreshAt(time.Now(), time.Hour))
}

func TestMemoryBackendEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(1)
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, testFingerprint, sampleEntry(testFingerprint)))
	require.NoError(t, backend.Put(ctx, otherFingerprint, sampleEntry(otherFingerprint)))
	require.Equal(t, 1, backend.Len())

	evicted, err := backend.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.Nil(t, evicted)
	kept, err := backend.Get(ctx, otherFingerprint)
	require.NoError(t, err)
	require.Equal(t, otherFingerprint.String(), kept.Artifact.Fingerprint)
}

func TestFileBackendStoresShardedBlobs(t *testing.T) {
	ctx := context.Background()
	directory := t.TempDir()
	backend, err := NewFileBackend(directory)
	require.NoError(t, err)

	missing, err := backend.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.Nil(t, missing)

	entry := sampleEntry(testFingerprint)
	require.NoError(t, backend.Put(ctx, testFingerprint, entry))
	_, statErr := os.Stat(filepath.Join(directory, "01", testFingerprint.String()+".digest"))
	require.NoError(t, statErr)

	stored, err := backend.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, entry, *stored)

	shardEntries, err := os.ReadDir(filepath.Join(directory, "01"))
	require.NoError(t, err)
	require.Len(t, shardEntries, 1)
}

func TestFileBackendReportsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	directory := t.TempDir()
	backend, err := NewFileBackend(directory)
	require.NoError(t, err)
	blobPath := filepath.Join(directory, "01", testFingerprint.String()+".digest")
	require.NoError(t, os.MkdirAll(filepath.Dir(blobPath), 0o750))
	require.NoError(t, os.WriteFile(blobPath, []byte("garbage"), 0o600))

	_, err = backend.Get(ctx, testFingerprint)
	require.ErrorIs(t, err, types.ErrCacheEntryCorrupt)
}

func TestFileBackendRejectsInvalidFingerprint(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	require.Error(t, backend.Put(context.Background(), "../escape", sampleEntry(testFingerprint)))
}

func TestNewFileBackendRequiresDirectory(t *testing.T) {
	_, err := NewFileBackend("")
	require.ErrorIs(t, err, types.ErrCacheBackendUnavailable)
}

func TestBadgerBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBadgerBackend(BadgerConfig{InMemory: true, FreshnessWindow: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	missing, err := backend.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.Nil(t, missing)

	entry := sampleEntry(testFingerprint)
	require.NoError(t, backend.Put(ctx, testFingerprint, entry))
	stored, err := backend.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, entry, *stored)
}

func TestOpenBadgerBackendRequiresDirectory(t *testing.T) {
	_, err := OpenBadgerBackend(BadgerConfig{})
	require.Error(t, err)
}

func TestS3BackendObjectKey(t *testing.T) {
	backend, err := NewS3Backend(S3Config{Endpoint: "localhost:9000", AccessKey: "access", SecretKey: "secret", Bucket: "digests", Prefix: "/team/"})
	require.NoError(t, err)
	require.Equal(t, "team/ingest/01/"+testFingerprint.String()+".digest", backend.ObjectKey(testFingerprint))

	unprefixed, err := NewS3Backend(S3Config{Endpoint: "localhost:9000", AccessKey: "access", SecretKey: "secret", Bucket: "digests"})
	require.NoError(t, err)
	require.Equal(t, "ingest/01/"+testFingerprint.String()+".digest", unprefixed.ObjectKey(testFingerprint))
}

func TestNewS3BackendValidatesConfig(t *testing.T) {
	_, err := NewS3Backend(S3Config{AccessKey: "a", SecretKey: "b", Bucket: "c"})
	require.Error(t, err)
	_, err = NewS3Backend(S3Config{Endpoint: "localhost:9000", Bucket: "c"})
	require.Error(t, err)
	_, err = NewS3Backend(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.Error(t, err)
}

type failingBackend struct {
	getCalls int
	putCalls int
}

func (backend *failingBackend) Name() string { return "failing" }

func (backend *failingBackend) Get(context.Context, fingerprint.Fingerprint) (*Entry, error) {
	backend.getCalls++
	return nil, errors.New("backend offline")
}

func (backend *failingBackend) Put(context.Context, fingerprint.Fingerprint, Entry) error {
	backend.putCalls++
	return errors.New("backend offline")
}

func TestTieredBackendFillsFront(t *testing.T) {
	ctx := context.Background()
	front, err := NewMemoryBackend(4)
	require.NoError(t, err)
	back, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, back.Put(ctx, testFingerprint, sampleEntry(testFingerprint)))

	tiered := NewTieredBackend(front, back, nil)
	require.Equal(t, "tiered(memory,file)", tiered.Name())
	entry, err := tiered.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 1, front.Len())
}

func TestTieredBackendSkipsFailingFront(t *testing.T) {
	ctx := context.Background()
	back, err := NewMemoryBackend(4)
	require.NoError(t, err)
	require.NoError(t, back.Put(ctx, testFingerprint, sampleEntry(testFingerprint)))
	front := &failingBackend{}

	tiered := NewTieredBackend(front, back, nil)
	entry, err := tiered.Get(ctx, testFingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 1, front.putCalls)

	require.Error(t, tiered.Put(ctx, otherFingerprint, sampleEntry(otherFingerprint)))
	stored, err := back.Get(ctx, otherFingerprint)
	require.NoError(t, err)
	require.NotNil(t, stored)
}
