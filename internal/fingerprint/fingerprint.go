// Package fingerprint derives the cache key of an ingestion request.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/zeebo/xxh3"

	"github.com/temirov/ingest/internal/types"
)

// Length is the number of hex characters in a Fingerprint.
const Length = 32

const encodingVersion = "ingest-fingerprint/v1"

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Fingerprint is a 128-bit xxh3 digest rendered as lowercase hex.
type Fingerprint string

// Key lists every request field that can change a digest. The credential is absent.
type Key struct {
	Locator           string
	ResolvedRef       string
	Subpath           string
	IncludePatterns   []string
	ExcludePatterns   []string
	MaxFileSize       int64
	MaxTotalSize      int64
	MaxFileCount      int
	IncludeGitignored bool
	IncludeSubmodules bool
}

// KeyFor builds the key of a normalized request whose source resolved to
// canonicalLocator at resolvedRef.
func KeyFor(request types.IngestionRequest, canonicalLocator string, resolvedRef string) Key {
	return Key{
		Locator:           canonicalLocator,
		ResolvedRef:       resolvedRef,
		Subpath:           request.Subpath,
		IncludePatterns:   request.IncludePatterns,
		ExcludePatterns:   request.ExcludePatterns,
		MaxFileSize:       request.MaxFileSize,
		MaxTotalSize:      request.MaxTotalSize,
		MaxFileCount:      request.MaxFileCount,
		IncludeGitignored: request.IncludeGitignored,
		IncludeSubmodules: request.IncludeSubmodules,
	}
}

// Compute hashes the canonical encoding of key.
func Compute(key Key) Fingerprint {
	sum := xxh3.Hash128(key.canonicalBytes())
	return Fingerprint(fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo))
}

// canonicalBytes encodes every field length-prefixed so that no two distinct keys
// share an encoding.
func (key Key) canonicalBytes() []byte {
	var buffer []byte
	buffer = appendString(buffer, encodingVersion)
	buffer = appendString(buffer, key.Locator)
	buffer = appendString(buffer, key.ResolvedRef)
	buffer = appendString(buffer, key.Subpath)
	buffer = appendStrings(buffer, key.IncludePatterns)
	buffer = appendStrings(buffer, key.ExcludePatterns)
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(key.MaxFileSize))
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(key.MaxTotalSize))
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(key.MaxFileCount))
	buffer = appendBool(buffer, key.IncludeGitignored)
	buffer = appendBool(buffer, key.IncludeSubmodules)
	return buffer
}

func appendString(buffer []byte, value string) []byte {
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(value)))
	return append(buffer, value...)
}

func appendStrings(buffer []byte, values []string) []byte {
	buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(values)))
	for _, value := range values {
		buffer = appendString(buffer, value)
	}
	return buffer
}

func appendBool(buffer []byte, value bool) []byte {
	if value {
		return append(buffer, 1)
	}
	return append(buffer, 0)
}

// Valid reports whether fingerprint is well formed.
func (fingerprint Fingerprint) Valid() bool {
	return fingerprintPattern.MatchString(string(fingerprint))
}

// Shard returns the two-character prefix used to fan out storage directories.
func (fingerprint Fingerprint) Shard() string {
	if len(fingerprint) < 2 {
		return "00"
	}
	return string(fingerprint[:2])
}

// String returns the hex form.
func (fingerprint Fingerprint) String() string {
	return string(fingerprint)
}
