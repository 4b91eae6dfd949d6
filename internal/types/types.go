// Package types defines every cross-package data structure used by the ingestion pipeline.
package types

import "time"

// NodeKind classifies a TreeNode.
type NodeKind string

const (
	NodeKindFile      NodeKind = "file"
	NodeKindDirectory NodeKind = "directory"
	NodeKindSymlink   NodeKind = "symlink"

	FormatRaw  = "raw"
	FormatJSON = "json"
)

// ExclusionReason records why a node was left out of the content section.
type ExclusionReason string

const (
	ReasonNone           ExclusionReason = ""
	ReasonIgnored        ExclusionReason = "ignored"
	ReasonExcluded       ExclusionReason = "excluded"
	ReasonNotIncluded    ExclusionReason = "not included"
	ReasonTruncated      ExclusionReason = "truncated"
	ReasonFileCountLimit ExclusionReason = "file count limit"
	ReasonTotalSizeLimit ExclusionReason = "total size limit"
	ReasonDepthLimit     ExclusionReason = "depth limit"
	ReasonBinary         ExclusionReason = "binary"
	ReasonUnreadable     ExclusionReason = "unreadable"
	ReasonUnsafeLink     ExclusionReason = "unsafe link"
)

// TreeNode is one file, directory, or symlink of an ingested workspace.
// Directories own their children; nodes never point back at their parents.
type TreeNode struct {
	Path       string          `json:"path"`
	Name       string          `json:"name"`
	Kind       NodeKind        `json:"kind"`
	Size       int64           `json:"size"`
	Included   bool            `json:"included"`
	Reason     ExclusionReason `json:"reason,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
	LinkTarget string          `json:"linkTarget,omitempty"`
	Content    string          `json:"-"`
	Children   []*TreeNode     `json:"children,omitempty"`
}

// IsDirectory reports whether the node owns children.
func (node *TreeNode) IsDirectory() bool {
	return node != nil && node.Kind == NodeKindDirectory
}

// HasContent reports whether the node contributes text to the content section.
func (node *TreeNode) HasContent() bool {
	return node != nil && !node.IsDirectory() && node.Included && node.Reason == ReasonNone
}

// DigestStats aggregates the numbers surfaced in a digest summary.
type DigestStats struct {
	FilesAnalyzed   int      `json:"filesAnalyzed"`
	TotalSize       int64    `json:"totalSize"`
	EstimatedTokens *int     `json:"estimatedTokens,omitempty"`
	Truncated       bool     `json:"truncated"`
	Notices         []string `json:"notices,omitempty"`
}

// DigestArtifact is the immutable result of one ingestion.
type DigestArtifact struct {
	Source      string      `json:"source"`
	Ref         string      `json:"ref,omitempty"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"createdAt"`
	Summary     string      `json:"summary"`
	Tree        string      `json:"tree"`
	Content     string      `json:"content"`
	Stats       DigestStats `json:"stats"`
}

// Text joins the three sections the way they are written to a digest file.
func (artifact DigestArtifact) Text() string {
	return artifact.Summary + "\n" + artifact.Tree + "\n" + artifact.Content
}
