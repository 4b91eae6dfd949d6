package types

import (
	"errors"
	"path"
	"sort"
	"strings"
)

const (
	// DefaultMaxFileSize bounds the content of a single file.
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	// DefaultMaxTotalSize bounds the content of a whole digest.
	DefaultMaxTotalSize int64 = 500 * 1024 * 1024
	// DefaultMaxFileCount bounds the number of files admitted into a digest.
	DefaultMaxFileCount = 10000

	errorSubpathEscapeDetail = "subpath escapes the source root"
	errorNegatedPattern      = "negation is only supported in ignore files"

	includePatternsOrigin = "include patterns"
	excludePatternsOrigin = "exclude patterns"
	negationPrefix        = "!"
)

// IngestionRequest describes one ingestion. It is passed by value and never mutated
// after Normalize.
type IngestionRequest struct {
	Source            string   `json:"source"`
	Ref               string   `json:"ref,omitempty"`
	Subpath           string   `json:"subpath,omitempty"`
	IncludePatterns   []string `json:"includePatterns,omitempty"`
	ExcludePatterns   []string `json:"excludePatterns,omitempty"`
	MaxFileSize       int64    `json:"maxFileSize"`
	MaxTotalSize      int64    `json:"maxTotalSize"`
	MaxFileCount      int      `json:"maxFileCount"`
	IncludeGitignored bool     `json:"includeGitignored"`
	IncludeSubmodules bool     `json:"includeSubmodules"`
	Credential        string   `json:"-"`
}

// Normalize returns a canonical copy of the request: patterns are split on commas
// and whitespace, slash-normalized, deduplicated, and sorted; the subpath is cleaned
// to a relative slash path ("" for the root); zero budgets take their defaults.
// Request patterns form sets, so a "!" negation, whose meaning depends on order, is
// rejected with a PatternSyntaxError. A literal leading "!" is written as "\!".
func (request IngestionRequest) Normalize() (IngestionRequest, error) {
	normalized := request
	normalized.Source = strings.TrimSpace(request.Source)
	normalized.Ref = strings.TrimSpace(request.Ref)
	normalized.Credential = strings.TrimSpace(request.Credential)
	normalized.IncludePatterns = NormalizePatterns(request.IncludePatterns)
	normalized.ExcludePatterns = NormalizePatterns(request.ExcludePatterns)
	if negatedError := rejectNegation(normalized.IncludePatterns, includePatternsOrigin); negatedError != nil {
		return IngestionRequest{}, negatedError
	}
	if negatedError := rejectNegation(normalized.ExcludePatterns, excludePatternsOrigin); negatedError != nil {
		return IngestionRequest{}, negatedError
	}

	cleanedSubpath, subpathValid := CleanSubpath(request.Subpath)
	if !subpathValid {
		return IngestionRequest{}, &SourceError{Locator: request.Source, Kind: ErrInvalidSource, Detail: errorSubpathEscapeDetail}
	}
	normalized.Subpath = cleanedSubpath

	if normalized.MaxFileSize <= 0 {
		normalized.MaxFileSize = DefaultMaxFileSize
	}
	if normalized.MaxTotalSize <= 0 {
		normalized.MaxTotalSize = DefaultMaxTotalSize
	}
	if normalized.MaxFileCount <= 0 {
		normalized.MaxFileCount = DefaultMaxFileCount
	}
	return normalized, nil
}

// NormalizePatterns splits, cleans, deduplicates, and sorts a pattern list.
func NormalizePatterns(rawPatterns []string) []string {
	seenPatterns := make(map[string]struct{})
	var patterns []string
	for _, rawPattern := range rawPatterns {
		for _, field := range strings.FieldsFunc(rawPattern, isPatternSeparator) {
			pattern := strings.ReplaceAll(field, "\\", "/")
			if _, seen := seenPatterns[pattern]; seen {
				continue
			}
			seenPatterns[pattern] = struct{}{}
			patterns = append(patterns, pattern)
		}
	}
	sort.Strings(patterns)
	return patterns
}

func rejectNegation(patterns []string, origin string) error {
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, negationPrefix) {
			return &PatternSyntaxError{Pattern: pattern, Origin: origin, Err: errors.New(errorNegatedPattern)}
		}
	}
	return nil
}

func isPatternSeparator(character rune) bool {
	switch character {
	case ',', ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

// CleanSubpath converts a user supplied subpath into a relative slash path.
// It reports false when the path would leave the source root.
func CleanSubpath(rawSubpath string) (string, bool) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(rawSubpath, "\\", "/"))
	if trimmed == "" {
		return "", true
	}
	cleaned := path.Clean(strings.TrimLeft(trimmed, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	if cleaned == "." {
		return "", true
	}
	return cleaned, true
}
