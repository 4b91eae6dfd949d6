// Package filter decides, node by node, what an ingestion includes.
//
// Precedence, highest first: exclude patterns; explicit include patterns, which
// re-admit paths hidden by ignore rules; ignore rules (ignore files unless
// include-gitignored is set, plus the built-in defaults); then the per-file size
// limit and the running global budgets tracked by Budget.
package filter

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/temirov/ingest/internal/patterns"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

// MaxDirectoryDepth bounds how deep a walk descends below the workspace root.
const MaxDirectoryDepth = 20

const (
	includeOrigin = "include patterns"
	excludeOrigin = "exclude patterns"
)

// Decision is the verdict for one node.
type Decision struct {
	Include bool
	Reason  types.ExclusionReason
	// Prune is set for directories that must not be entered.
	Prune bool
}

// Policy is the compiled, immutable form of a request's filters and budgets.
type Policy struct {
	includes          patterns.Ruleset
	excludes          patterns.Ruleset
	defaults          patterns.Ruleset
	ignores           patterns.Ruleset
	ignoreBase        string
	includeGitignored bool

	MaxFileSize  int64
	MaxTotalSize int64
	MaxFileCount int
}

// NewPolicy compiles a normalized request together with the ignore rules already
// known for its walk, such as those declared above a subpath. Ignore files met
// during the walk are layered on with WithIgnoreRules. Any malformed pattern fails
// the whole policy.
func NewPolicy(request types.IngestionRequest, ignoreRules patterns.Ruleset) (Policy, error) {
	includes, includeError := patterns.Compile("", request.IncludePatterns)
	if includeError != nil {
		return Policy{}, withOrigin(includeError, includeOrigin)
	}
	excludes, excludeError := patterns.Compile("", request.ExcludePatterns)
	if excludeError != nil {
		return Policy{}, withOrigin(excludeError, excludeOrigin)
	}
	defaults, defaultsError := patterns.Compile("", patterns.DefaultIgnorePatternsWithout(request.IncludePatterns))
	if defaultsError != nil {
		return Policy{}, defaultsError
	}
	return Policy{
		includes:          includes,
		excludes:          excludes,
		defaults:          defaults,
		ignores:           ignoreRules,
		includeGitignored: request.IncludeGitignored,
		MaxFileSize:       request.MaxFileSize,
		MaxTotalSize:      request.MaxTotalSize,
		MaxFileCount:      request.MaxFileCount,
	}, nil
}

// WithIgnoreBase returns a copy of the policy whose walk is rooted at base, the
// slash-separated path of the walk root inside the workspace. Ignore rules are
// scoped to workspace paths, so they see every evaluated path prefixed with base.
func (policy Policy) WithIgnoreBase(base string) Policy {
	policy.ignoreBase = strings.Trim(base, "/")
	return policy
}

// WithIgnoreRules returns a copy of the policy that also honors rules, evaluated
// after the ignore rules it already holds.
func (policy Policy) WithIgnoreRules(rules patterns.Ruleset) Policy {
	policy.ignores = policy.ignores.Concat(rules)
	return policy
}

// IgnoreBase returns the workspace path of the walk root.
func (policy Policy) IgnoreBase() string {
	return policy.ignoreBase
}

// HonorsIgnoreFiles reports whether ignore files take part in evaluation.
func (policy Policy) HonorsIgnoreFiles() bool {
	return !policy.includeGitignored
}

// Evaluate applies the pattern rules and the per-file size limit to one node.
// relativePath is slash separated and relative to the walk root.
func (policy Policy) Evaluate(relativePath string, kind types.NodeKind, size int64) Decision {
	isDirectory := kind == types.NodeKindDirectory

	if policy.excludes.Match(relativePath, isDirectory) {
		return Decision{Reason: types.ReasonExcluded, Prune: isDirectory}
	}
	if isDirectory && path.Base(relativePath) == utils.GitDirectoryName {
		return Decision{Reason: types.ReasonIgnored, Prune: true}
	}
	if isDirectory && strings.Count(relativePath, "/")+1 > MaxDirectoryDepth {
		return Decision{Reason: types.ReasonDepthLimit, Prune: true}
	}

	hasIncludes := policy.includes.Len() > 0
	explicitlyIncluded := hasIncludes && policy.includes.Match(relativePath, isDirectory)
	ignored := policy.defaults.Match(relativePath, isDirectory) ||
		(!policy.includeGitignored && policy.ignores.MatchBelow(policy.ignoreBase, relativePath, isDirectory))

	if ignored && !explicitlyIncluded {
		if isDirectory && hasIncludes && policy.includes.CouldMatchBeneath(relativePath) {
			return Decision{Include: true}
		}
		return Decision{Reason: types.ReasonIgnored, Prune: isDirectory}
	}
	if isDirectory {
		return Decision{Include: true}
	}
	if hasIncludes && !explicitlyIncluded {
		return Decision{Reason: types.ReasonNotIncluded}
	}
	if size > policy.MaxFileSize {
		return Decision{Reason: types.ReasonTruncated}
	}
	return Decision{Include: true}
}

func withOrigin(compileError error, origin string) error {
	var patternError *types.PatternSyntaxError
	if errors.As(compileError, &patternError) {
		annotated := *patternError
		annotated.Origin = origin
		return &annotated
	}
	return fmt.Errorf("%s: %w", origin, compileError)
}
