package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ingest/internal/types"
)

func baseKey() Key {
	return Key{
		Locator:         "https://github.com/octo/widgets",
		ResolvedRef:     "0123456789abcdef0123456789abcdef01234567",
		Subpath:         "src",
		IncludePatterns: []string{"*.go"},
		ExcludePatterns: []string{"vendor/"},
		MaxFileSize:     types.DefaultMaxFileSize,
		MaxTotalSize:    types.DefaultMaxTotalSize,
		MaxFileCount:    types.DefaultMaxFileCount,
	}
}

func TestComputeIsStable(t *testing.T) {
	first := Compute(baseKey())
	require.Equal(t, first, Compute(baseKey()))
	require.True(t, first.Valid())
	require.Len(t, first.String(), Length)
	require.Equal(t, first.String()[:2], first.Shard())
}

func TestComputeChangesWithEveryField(t *testing.T) {
	mutations := map[string]func(*Key){
		"locator":            func(key *Key) { key.Locator = "https://github.com/octo/gadgets" },
		"ref":                func(key *Key) { key.ResolvedRef = "fedcba9876543210fedcba9876543210fedcba98" },
		"subpath":            func(key *Key) { key.Subpath = "cmd" },
		"include":            func(key *Key) { key.IncludePatterns = []string{"*.md"} },
		"exclude":            func(key *Key) { key.ExcludePatterns = nil },
		"max file size":      func(key *Key) { key.MaxFileSize++ },
		"max total size":     func(key *Key) { key.MaxTotalSize++ },
		"max file count":     func(key *Key) { key.MaxFileCount++ },
		"include gitignored": func(key *Key) { key.IncludeGitignored = true },
		"include submodules": func(key *Key) { key.IncludeSubmodules = true },
	}
	base := Compute(baseKey())
	seen := map[Fingerprint]string{base: "base"}
	for name, mutate := range mutations {
		key := baseKey()
		mutate(&key)
		mutated := Compute(key)
		require.NotEqual(t, base, mutated, name)
		previous, duplicate := seen[mutated]
		require.False(t, duplicate, "%s collides with %s", name, previous)
		seen[mutated] = name
	}
}

func TestComputeSeparatesPatternBoundaries(t *testing.T) {
	joined := baseKey()
	joined.IncludePatterns = []string{"ab"}
	split := baseKey()
	split.IncludePatterns = []string{"a", "b"}
	require.NotEqual(t, Compute(joined), Compute(split))

	moved := baseKey()
	moved.IncludePatterns = nil
	moved.ExcludePatterns = []string{"*.go", "vendor/"}
	require.NotEqual(t, Compute(baseKey()), Compute(moved))
}

func TestKeyForIgnoresCredential(t *testing.T) {
	request := types.IngestionRequest{Source: "octo/widgets", Subpath: "src", Credential: "secret-one"}
	other := request
	other.Credential = "secret-two"
	require.Equal(t,
		Compute(KeyFor(request, "https://github.com/octo/widgets", "main")),
		Compute(KeyFor(other, "https://github.com/octo/widgets", "main")))
}

func TestValid(t *testing.T) {
	require.False(t, Fingerprint("").Valid())
	require.False(t, Fingerprint("ABCDEF0123456789abcdef0123456789").Valid())
	require.False(t, Fingerprint("../../etc/passwd").Valid())
}
