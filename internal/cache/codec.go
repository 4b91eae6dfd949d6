package cache

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/types"
)

const (
	blobMagic         = "ingest-digest v1"
	headerSeparator   = ": "
	missingTokenValue = "-"

	headerFingerprint  = "fingerprint"
	headerSource       = "source"
	headerRef          = "ref"
	headerMutable      = "mutable"
	headerCreatedAt    = "created-at"
	headerFiles        = "files"
	headerTotalSize    = "total-size"
	headerTokens       = "tokens"
	headerTruncated    = "truncated"
	headerNotice       = "notice"
	headerSummaryBytes = "summary-bytes"
	headerTreeBytes    = "tree-bytes"
	headerContentBytes = "content-bytes"

	errorCorruptFormat = "%w: %s"
)

// EncodeEntry serializes entry as a metadata header followed by the three digest
// sections. The header carries enough to rebuild the artifact without the pipeline.
func EncodeEntry(key fingerprint.Fingerprint, entry Entry) []byte {
	artifact := entry.Artifact
	var buffer bytes.Buffer
	buffer.WriteString(blobMagic)
	buffer.WriteByte('\n')
	writeHeader(&buffer, headerFingerprint, key.String())
	writeHeader(&buffer, headerSource, artifact.Source)
	writeHeader(&buffer, headerRef, artifact.Ref)
	writeHeader(&buffer, headerMutable, strconv.FormatBool(entry.Mutable))
	writeHeader(&buffer, headerCreatedAt, entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	writeHeader(&buffer, headerFiles, strconv.Itoa(artifact.Stats.FilesAnalyzed))
	writeHeader(&buffer, headerTotalSize, strconv.FormatInt(artifact.Stats.TotalSize, 10))
	tokens := missingTokenValue
	if artifact.Stats.EstimatedTokens != nil {
		tokens = strconv.Itoa(*artifact.Stats.EstimatedTokens)
	}
	writeHeader(&buffer, headerTokens, tokens)
	writeHeader(&buffer, headerTruncated, strconv.FormatBool(artifact.Stats.Truncated))
	for _, notice := range artifact.Stats.Notices {
		writeHeader(&buffer, headerNotice, notice)
	}
	writeHeader(&buffer, headerSummaryBytes, strconv.Itoa(len(artifact.Summary)))
	writeHeader(&buffer, headerTreeBytes, strconv.Itoa(len(artifact.Tree)))
	writeHeader(&buffer, headerContentBytes, strconv.Itoa(len(artifact.Content)))
	buffer.WriteByte('\n')
	buffer.WriteString(artifact.Summary)
	buffer.WriteString(artifact.Tree)
	buffer.WriteString(artifact.Content)
	return buffer.Bytes()
}

func writeHeader(buffer *bytes.Buffer, name string, value string) {
	buffer.WriteString(name)
	buffer.WriteString(headerSeparator)
	buffer.WriteString(singleLine(value))
	buffer.WriteByte('\n')
}

func singleLine(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

// DecodeEntry parses a blob written by EncodeEntry. Any inconsistency, including a
// fingerprint other than key, yields an error wrapping types.ErrCacheEntryCorrupt.
func DecodeEntry(key fingerprint.Fingerprint, data []byte) (*Entry, error) {
	headerText, body, found := bytes.Cut(data, []byte("\n\n"))
	if !found {
		return nil, corrupt("missing header terminator")
	}
	lines := strings.Split(string(headerText), "\n")
	if lines[0] != blobMagic {
		return nil, corrupt("unknown format " + strconv.Quote(lines[0]))
	}

	var (
		entry        Entry
		sectionSizes = map[string]int{}
		seen         = map[string]bool{}
	)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, headerSeparator)
		if !ok {
			return nil, corrupt("malformed header line " + strconv.Quote(line))
		}
		seen[name] = true
		var parseError error
		switch name {
		case headerFingerprint:
			if value != key.String() {
				return nil, corrupt("fingerprint mismatch")
			}
		case headerSource:
			entry.Artifact.Source = value
		case headerRef:
			entry.Artifact.Ref = value
		case headerMutable:
			entry.Mutable, parseError = strconv.ParseBool(value)
		case headerCreatedAt:
			entry.CreatedAt, parseError = time.Parse(time.RFC3339Nano, value)
		case headerFiles:
			entry.Artifact.Stats.FilesAnalyzed, parseError = strconv.Atoi(value)
		case headerTotalSize:
			entry.Artifact.Stats.TotalSize, parseError = strconv.ParseInt(value, 10, 64)
		case headerTokens:
			if value != missingTokenValue {
				var tokens int
				tokens, parseError = strconv.Atoi(value)
				entry.Artifact.Stats.EstimatedTokens = &tokens
			}
		case headerTruncated:
			entry.Artifact.Stats.Truncated, parseError = strconv.ParseBool(value)
		case headerNotice:
			entry.Artifact.Stats.Notices = append(entry.Artifact.Stats.Notices, value)
		case headerSummaryBytes, headerTreeBytes, headerContentBytes:
			sectionSizes[name], parseError = strconv.Atoi(value)
		}
		if parseError != nil {
			return nil, corrupt(fmt.Sprintf("header %s: %v", name, parseError))
		}
	}
	for _, required := range []string{headerFingerprint, headerCreatedAt, headerSummaryBytes, headerTreeBytes, headerContentBytes} {
		if !seen[required] {
			return nil, corrupt("missing header " + required)
		}
	}

	summarySize, treeSize, contentSize := sectionSizes[headerSummaryBytes], sectionSizes[headerTreeBytes], sectionSizes[headerContentBytes]
	if summarySize < 0 || treeSize < 0 || contentSize < 0 || summarySize+treeSize+contentSize != len(body) {
		return nil, corrupt("section lengths do not match body")
	}
	entry.Artifact.Fingerprint = key.String()
	entry.Artifact.CreatedAt = entry.CreatedAt
	entry.Artifact.Summary = string(body[:summarySize])
	entry.Artifact.Tree = string(body[summarySize : summarySize+treeSize])
	entry.Artifact.Content = string(body[summarySize+treeSize:])
	return &entry, nil
}

func corrupt(detail string) error {
	return fmt.Errorf(errorCorruptFormat, types.ErrCacheEntryCorrupt, detail)
}
