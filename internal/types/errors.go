package types

import (
	"errors"
	"fmt"
)

// Request-level failures abort an ingestion; the remaining sentinels describe
// degradations that are logged and absorbed.
var (
	ErrInvalidSource               = errors.New("invalid source")
	ErrAuthenticationRequired      = errors.New("authentication required")
	ErrAuthenticationFailed        = errors.New("authentication failed")
	ErrCloneFailed                 = errors.New("clone failed")
	ErrPatternSyntax               = errors.New("pattern syntax error")
	ErrCacheBackendUnavailable     = errors.New("cache backend unavailable")
	ErrTokenEstimationUnavailable  = errors.New("token estimation unavailable")
	ErrSubmoduleFailure            = errors.New("submodule checkout failed")
	ErrCacheEntryCorrupt           = errors.New("cache entry corrupt")
	ErrUnsupportedCacheBackendKind = errors.New("unsupported cache backend")
)

// PatternSyntaxError identifies the pattern that failed to compile.
type PatternSyntaxError struct {
	Pattern string
	Origin  string
	Err     error
}

func (patternError *PatternSyntaxError) Error() string {
	if patternError.Origin == "" {
		return fmt.Sprintf("%s: %q: %v", ErrPatternSyntax, patternError.Pattern, patternError.Err)
	}
	return fmt.Sprintf("%s: %q in %s: %v", ErrPatternSyntax, patternError.Pattern, patternError.Origin, patternError.Err)
}

func (patternError *PatternSyntaxError) Unwrap() []error {
	return []error{ErrPatternSyntax, patternError.Err}
}

// SourceError wraps an acquisition failure with the locator that caused it.
type SourceError struct {
	Locator string
	Kind    error
	Detail  string
}

func (sourceError *SourceError) Error() string {
	if sourceError.Detail == "" {
		return fmt.Sprintf("%s: %s", sourceError.Kind, sourceError.Locator)
	}
	return fmt.Sprintf("%s: %s: %s", sourceError.Kind, sourceError.Locator, sourceError.Detail)
}

func (sourceError *SourceError) Unwrap() error {
	return sourceError.Kind
}

// IsRequestError reports whether err must be surfaced to the caller unchanged.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidSource) ||
		errors.Is(err, ErrAuthenticationRequired) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrPatternSyntax)
}
