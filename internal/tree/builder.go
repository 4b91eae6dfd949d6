// Package tree walks an acquired workspace through a filter policy and builds the
// in-memory tree that a digest is rendered from.
package tree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/ingest/internal/config"
	"github.com/temirov/ingest/internal/filter"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	// warningReadDirectoryFormat is used when a directory cannot be listed.
	warningReadDirectoryFormat = "skipping directory %s: %v"
	// warningStatPathFormat is used when file information cannot be retrieved.
	warningStatPathFormat = "unable to stat %s: %v"
	// warningResolveLinkFormat is used when a symlink cannot be resolved.
	warningResolveLinkFormat = "unable to resolve link %s: %v"

	// errorAbsolutePathFormat is used when the absolute path cannot be determined.
	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	// errorRootFormat is used when the workspace root is unusable.
	errorRootFormat = "%w: workspace root %s: %v"
)

// Builder walks a workspace depth-first in lexicographic order. Ignore files are
// read as their directory is entered, so a pruned directory's files are never
// parsed, and their rules only govern that directory's subtree.
type Builder struct {
	// Policy holds the request's filters plus any ignore rules declared above
	// the walk root.
	Policy filter.Policy
	// Warn receives per-file problems that do not abort the walk.
	Warn func(string)
}

// Result is a built tree plus the totals of its admitted files.
type Result struct {
	Root          *types.TreeNode
	FilesAnalyzed int
	TotalSize     int64
	Truncated     bool
	Notices       []string
}

type walkState struct {
	ctx           context.Context
	canonicalRoot string
	budget        *filter.Budget
}

// Build walks rootDirectoryPath. The only errors it returns are an unusable root,
// a malformed ignore file, and cancellation of ctx; everything else is recorded on
// the nodes.
func (builder *Builder) Build(ctx context.Context, rootDirectoryPath string) (Result, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootDirectoryPath)
	if absolutePathError != nil {
		return Result{}, fmt.Errorf(errorAbsolutePathFormat, rootDirectoryPath, absolutePathError)
	}
	canonicalRoot, resolveError := filepath.EvalSymlinks(absoluteRootPath)
	if resolveError != nil {
		return Result{}, fmt.Errorf(errorRootFormat, types.ErrInvalidSource, absoluteRootPath, resolveError)
	}
	rootInfo, statError := os.Stat(canonicalRoot)
	if statError != nil || !rootInfo.IsDir() {
		return Result{}, fmt.Errorf(errorRootFormat, types.ErrInvalidSource, absoluteRootPath, "not a directory")
	}

	state := &walkState{
		ctx:           ctx,
		canonicalRoot: canonicalRoot,
		budget:        filter.NewBudget(builder.Policy),
	}
	rootNode := &types.TreeNode{
		Name:     filepath.Base(absoluteRootPath),
		Kind:     types.NodeKindDirectory,
		Included: true,
	}
	if walkError := builder.buildChildren(state, rootNode, canonicalRoot, []string{canonicalRoot}, builder.Policy); walkError != nil {
		return Result{}, walkError
	}

	result := Result{
		Root:          rootNode,
		FilesAnalyzed: state.budget.AdmittedFiles(),
		TotalSize:     state.budget.AdmittedBytes(),
		Truncated:     state.budget.Truncated(),
	}
	if notice := state.budget.Notice(); notice != "" {
		result.Notices = append(result.Notices, notice)
	}
	return result, nil
}

// buildChildren lists directoryPath into parent. ancestors holds the canonical paths
// of every directory on the way from the root to parent, inclusive. policy carries
// the ignore rules of those directories.
func (builder *Builder) buildChildren(state *walkState, parent *types.TreeNode, directoryPath string, ancestors []string, policy filter.Policy) error {
	directoryEntries, readDirectoryError := os.ReadDir(directoryPath)
	if readDirectoryError != nil {
		builder.warn(fmt.Sprintf(warningReadDirectoryFormat, displayPath(parent.Path), readDirectoryError))
		parent.Reason = types.ReasonUnreadable
		return nil
	}
	policy, scopeError := builder.scopeToDirectory(state, policy, directoryPath, parent.Path)
	if scopeError != nil {
		return scopeError
	}

	for _, directoryEntry := range directoryEntries {
		if contextError := state.ctx.Err(); contextError != nil {
			return contextError
		}
		childPath := filepath.Join(directoryPath, directoryEntry.Name())
		node := &types.TreeNode{
			Path: utils.JoinRelative(parent.Path, directoryEntry.Name()),
			Name: directoryEntry.Name(),
		}

		var childError error
		switch entryType := directoryEntry.Type(); {
		case entryType&fs.ModeSymlink != 0:
			childError = builder.buildSymlink(state, node, childPath, ancestors, policy)
		case entryType.IsDir():
			node.Kind = types.NodeKindDirectory
			childError = builder.buildDirectory(state, node, childPath, childPath, ancestors, policy)
		default:
			node.Kind = types.NodeKindFile
			entryInfo, infoError := directoryEntry.Info()
			if infoError != nil {
				builder.warn(fmt.Sprintf(warningStatPathFormat, node.Path, infoError))
				node.Reason = types.ReasonUnreadable
				break
			}
			node.Size = entryInfo.Size()
			if !entryInfo.Mode().IsRegular() {
				node.Reason = types.ReasonUnreadable
				break
			}
			builder.buildFile(state, node, childPath, policy)
		}
		if childError != nil {
			return childError
		}
		parent.Children = append(parent.Children, node)
		parent.Size += node.Size
	}
	return nil
}

// buildDirectory evaluates a directory node and descends into walkPath unless pruned.
// canonicalPath is walkPath with every link resolved.
func (builder *Builder) buildDirectory(state *walkState, node *types.TreeNode, walkPath string, canonicalPath string, ancestors []string, policy filter.Policy) error {
	decision := policy.Evaluate(node.Path, types.NodeKindDirectory, 0)
	if !decision.Include {
		node.Reason = decision.Reason
		return nil
	}
	node.Included = true
	return builder.buildChildren(state, node, walkPath, append(ancestors[:len(ancestors):len(ancestors)], canonicalPath), policy)
}

// buildFile applies the filter and the budget to a file and reads admitted content.
func (builder *Builder) buildFile(state *walkState, node *types.TreeNode, contentPath string, policy filter.Policy) {
	decision := policy.Evaluate(node.Path, types.NodeKindFile, node.Size)
	if decision.Include {
		decision = state.budget.Admit(node.Path, node.Size)
	}
	if !decision.Include {
		node.Reason = decision.Reason
		node.Truncated = decision.Reason == types.ReasonTruncated
		return
	}
	node.Included = true
	content, reason := readContent(contentPath, node.Path, builder.warn)
	node.Content = content
	node.Reason = reason
}

// buildSymlink resolves a link and treats it as its target when the target stays
// inside the workspace, does not lead back to a directory on the current path, and
// is not itself excluded or ignored.
func (builder *Builder) buildSymlink(state *walkState, node *types.TreeNode, linkPath string, ancestors []string, policy filter.Policy) error {
	node.Kind = types.NodeKindSymlink
	if rawTarget, readLinkError := os.Readlink(linkPath); readLinkError == nil {
		node.LinkTarget = filepath.ToSlash(rawTarget)
	}

	resolvedPath, resolveError := filepath.EvalSymlinks(linkPath)
	if resolveError != nil {
		builder.warn(fmt.Sprintf(warningResolveLinkFormat, node.Path, resolveError))
		node.Reason = types.ReasonUnreadable
		return nil
	}
	if !utils.IsWithin(state.canonicalRoot, resolvedPath) {
		node.Reason = types.ReasonUnsafeLink
		return nil
	}
	node.LinkTarget = utils.RelativePathOrSelf(resolvedPath, state.canonicalRoot)

	targetInfo, statError := os.Stat(resolvedPath)
	if statError != nil {
		builder.warn(fmt.Sprintf(warningStatPathFormat, node.Path, statError))
		node.Reason = types.ReasonUnreadable
		return nil
	}
	if targetInfo.IsDir() {
		if containsPath(ancestors, resolvedPath) {
			node.Reason = types.ReasonUnsafeLink
			return nil
		}
		hidden, targetError := builder.hidesLinkTarget(state, node, types.NodeKindDirectory)
		if hidden || targetError != nil {
			return targetError
		}
		node.Kind = types.NodeKindDirectory
		return builder.buildDirectory(state, node, resolvedPath, resolvedPath, ancestors, policy)
	}
	if !targetInfo.Mode().IsRegular() {
		node.Reason = types.ReasonUnreadable
		return nil
	}
	hidden, targetError := builder.hidesLinkTarget(state, node, types.NodeKindFile)
	if hidden || targetError != nil {
		return targetError
	}
	node.Size = targetInfo.Size()
	builder.buildFile(state, node, resolvedPath, policy)
	return nil
}

// hidesLinkTarget evaluates the path a link resolves to, node.LinkTarget, as the walk
// would reach it. When exclude or ignore rules hide the target, the link node takes
// the target's reason and hidden is true.
func (builder *Builder) hidesLinkTarget(state *walkState, node *types.TreeNode, targetKind types.NodeKind) (hidden bool, err error) {
	targetPolicy := builder.Policy
	segments := strings.Split(node.LinkTarget, "/")
	for depth := 0; depth < len(segments); depth++ {
		relativeDirectory := strings.Join(segments[:depth], "/")
		if depth > 0 {
			directoryDecision := targetPolicy.Evaluate(relativeDirectory, types.NodeKindDirectory, 0)
			if !directoryDecision.Include {
				node.Reason = directoryDecision.Reason
				return true, nil
			}
		}
		targetPolicy, err = builder.scopeToDirectory(state, targetPolicy, filepath.Join(state.canonicalRoot, filepath.FromSlash(relativeDirectory)), relativeDirectory)
		if err != nil {
			return false, err
		}
	}
	targetDecision := targetPolicy.Evaluate(node.LinkTarget, targetKind, 0)
	if targetDecision.Reason == types.ReasonExcluded || targetDecision.Reason == types.ReasonIgnored {
		node.Reason = targetDecision.Reason
		return true, nil
	}
	return false, nil
}

// scopeToDirectory layers the ignore files of directoryPath, whose walk-relative
// path is relativeDirectory, onto policy.
func (builder *Builder) scopeToDirectory(state *walkState, policy filter.Policy, directoryPath string, relativeDirectory string) (filter.Policy, error) {
	if !policy.HonorsIgnoreFiles() {
		return policy, nil
	}
	if contextError := state.ctx.Err(); contextError != nil {
		return policy, contextError
	}
	base := policy.IgnoreBase()
	if relativeDirectory != "" {
		base = utils.JoinRelative(base, relativeDirectory)
	}
	directoryRules, loadError := config.LoadDirectoryIgnoreRules(directoryPath, base, builder.warn)
	if loadError != nil {
		return policy, loadError
	}
	return policy.WithIgnoreRules(directoryRules), nil
}

func (builder *Builder) warn(message string) {
	if builder.Warn != nil {
		builder.Warn(message)
	}
}

func containsPath(paths []string, candidate string) bool {
	for _, existing := range paths {
		if existing == candidate {
			return true
		}
	}
	return false
}

func displayPath(relativePath string) string {
	if relativePath == "" {
		return "."
	}
	return relativePath
}
