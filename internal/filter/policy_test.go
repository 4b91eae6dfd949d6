package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ingest/internal/patterns"
	"github.com/temirov/ingest/internal/types"
)

func newTestPolicy(t *testing.T, request types.IngestionRequest, ignoreLines ...string) Policy {
	t.Helper()
	normalized, normalizeError := request.Normalize()
	require.NoError(t, normalizeError)
	ignoreRules, compileError := patterns.Compile("", ignoreLines)
	require.NoError(t, compileError)
	policy, policyError := NewPolicy(normalized, ignoreRules)
	require.NoError(t, policyError)
	return policy
}

func TestIncludeReadmitsIgnoredPath(t *testing.T) {
	withInclude := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"debug.log"}}, "*.log")
	require.Equal(t, Decision{Include: true}, withInclude.Evaluate("debug.log", types.NodeKindFile, 10))
	require.Equal(t, types.ReasonIgnored, withInclude.Evaluate("other.log", types.NodeKindFile, 10).Reason)

	withoutInclude := newTestPolicy(t, types.IngestionRequest{Source: "."}, "*.log")
	decision := withoutInclude.Evaluate("debug.log", types.NodeKindFile, 10)
	require.False(t, decision.Include)
	require.Equal(t, types.ReasonIgnored, decision.Reason)
}

func TestExcludeOverridesInclude(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"*.go"}, ExcludePatterns: []string{"gen_*.go"}})
	require.True(t, policy.Evaluate("main.go", types.NodeKindFile, 1).Include)
	require.Equal(t, Decision{Reason: types.ReasonExcluded}, policy.Evaluate("gen_types.go", types.NodeKindFile, 1))
}

func TestIncludeGitignoredSkipsIgnoreFiles(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludeGitignored: true}, "secret.txt")
	require.True(t, policy.Evaluate("secret.txt", types.NodeKindFile, 1).Include)
	require.Equal(t, types.ReasonIgnored, policy.Evaluate("node_modules", types.NodeKindDirectory, 0).Reason)
}

func TestDirectoryPruning(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", ExcludePatterns: []string{"docs/"}}, "tmp/")
	require.Equal(t, Decision{Reason: types.ReasonExcluded, Prune: true}, policy.Evaluate("docs", types.NodeKindDirectory, 0))
	require.Equal(t, Decision{Reason: types.ReasonIgnored, Prune: true}, policy.Evaluate("tmp", types.NodeKindDirectory, 0))
	require.Equal(t, Decision{Include: true}, policy.Evaluate("src", types.NodeKindDirectory, 0))
}

func TestIgnoredDirectoryTraversedForIncludes(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"build/keep.txt"}}, "build/")
	require.Equal(t, Decision{Include: true}, policy.Evaluate("build", types.NodeKindDirectory, 0))
	require.True(t, policy.Evaluate("build/keep.txt", types.NodeKindFile, 3).Include)
	require.Equal(t, types.ReasonIgnored, policy.Evaluate("build/other.txt", types.NodeKindFile, 3).Reason)
}

func TestNotIncludedFilesAndTraversedDirectories(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"*.md"}})
	require.Equal(t, types.ReasonNotIncluded, policy.Evaluate("main.go", types.NodeKindFile, 1).Reason)
	require.Equal(t, Decision{Include: true}, policy.Evaluate("src", types.NodeKindDirectory, 0))
}

func TestPerFileSizeBoundary(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", MaxFileSize: 100})
	require.Equal(t, Decision{Include: true}, policy.Evaluate("exact.txt", types.NodeKindFile, 100))
	require.Equal(t, Decision{Reason: types.ReasonTruncated}, policy.Evaluate("over.txt", types.NodeKindFile, 101))
}

func TestDepthLimit(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: "."})
	shallow := "d1/d2"
	require.True(t, policy.Evaluate(shallow, types.NodeKindDirectory, 0).Include)
	deepPath := "d"
	for depth := 1; depth <= MaxDirectoryDepth; depth++ {
		deepPath += "/d"
	}
	require.Equal(t, Decision{Reason: types.ReasonDepthLimit, Prune: true}, policy.Evaluate(deepPath, types.NodeKindDirectory, 0))
}

func TestNewPolicyReportsPatternOrigin(t *testing.T) {
	normalized, normalizeError := types.IngestionRequest{Source: ".", ExcludePatterns: []string{"[oops"}}.Normalize()
	require.NoError(t, normalizeError)
	_, policyError := NewPolicy(normalized, patterns.Ruleset{})
	require.True(t, errors.Is(policyError, types.ErrPatternSyntax))
	var patternError *types.PatternSyntaxError
	require.True(t, errors.As(policyError, &patternError))
	require.Equal(t, excludeOrigin, patternError.Origin)
}

func TestIncludeNamingDefaultRemovesIt(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"*.png", "*.go"}})
	require.True(t, policy.Evaluate("logo.png", types.NodeKindFile, 10).Include)
	require.Equal(t, types.ReasonNotIncluded, policy.Evaluate("notes.txt", types.NodeKindFile, 10).Reason)
}

func TestGitDirectoryAlwaysPruned(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: ".", IncludePatterns: []string{"**"}, IncludeGitignored: true})
	require.Equal(t, Decision{Reason: types.ReasonIgnored, Prune: true}, policy.Evaluate("sub/.git", types.NodeKindDirectory, 0))
}

func TestIgnoreBaseAppliesWorkspaceRulesBelowSubpath(t *testing.T) {
	var ancestorRules patterns.Ruleset
	require.NoError(t, ancestorRules.AppendIgnoreFile("", []string{"*.secret", "/sub/local.txt"}))
	normalized, normalizeError := types.IngestionRequest{Source: ".", Subpath: "sub"}.Normalize()
	require.NoError(t, normalizeError)
	policy, policyError := NewPolicy(normalized, ancestorRules)
	require.NoError(t, policyError)
	policy = policy.WithIgnoreBase("sub")

	require.Equal(t, "sub", policy.IgnoreBase())
	require.Equal(t, types.ReasonIgnored, policy.Evaluate("creds.secret", types.NodeKindFile, 1).Reason)
	require.Equal(t, types.ReasonIgnored, policy.Evaluate("local.txt", types.NodeKindFile, 1).Reason)
	require.True(t, policy.Evaluate("notes.txt", types.NodeKindFile, 1).Include)
}

func TestWithIgnoreRulesLayersDirectoryRules(t *testing.T) {
	policy := newTestPolicy(t, types.IngestionRequest{Source: "."}, "*.log")
	var nestedRules patterns.Ruleset
	require.NoError(t, nestedRules.AppendIgnoreFile("nested", []string{"!keep.log"}))

	layered := policy.WithIgnoreRules(nestedRules)
	require.True(t, layered.Evaluate("nested/keep.log", types.NodeKindFile, 1).Include)
	require.Equal(t, types.ReasonIgnored, layered.Evaluate("keep.log", types.NodeKindFile, 1).Reason)
	require.Equal(t, types.ReasonIgnored, policy.Evaluate("nested/keep.log", types.NodeKindFile, 1).Reason)
	require.True(t, policy.HonorsIgnoreFiles())
}
