package digest

import (
	"fmt"
	"strings"

	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	treeHeader          = "Directory structure:\n"
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	directorySuffix     = "/"
	linkArrow           = " -> "

	excludedMarkerFormat = " [excluded: %s]"
	truncatedMarker      = " [truncated]"
	binaryMarker         = " [binary]"
	unreadableMarker     = " [unreadable]"

	contentSeparator           = "================================================"
	fileHeaderFormat           = "FILE: %s\n"
	symlinkHeaderFormat        = "SYMLINK: %s -> %s\n"
	binaryPlaceholder          = "[Binary file]"
	unreadablePlaceholder      = "[Unreadable file]"
	emptyFilePlaceholder       = "[Empty file]"
	truncatedPlaceholderFormat = "[File truncated: %s exceeds max file size %s]"
)

// RenderTree lists every node of root, included or not, in walk order.
func RenderTree(root *types.TreeNode) string {
	var builder strings.Builder
	builder.WriteString(treeHeader)
	if root != nil {
		renderTreeNode(&builder, root, "", true)
	}
	return builder.String()
}

func renderTreeNode(builder *strings.Builder, node *types.TreeNode, prefix string, isLast bool) {
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	builder.WriteString(prefix)
	builder.WriteString(connector)
	builder.WriteString(nodeLabel(node))
	builder.WriteString("\n")
	for index, child := range node.Children {
		renderTreeNode(builder, child, childPrefix, index == len(node.Children)-1)
	}
}

func nodeLabel(node *types.TreeNode) string {
	label := node.Name
	if node.IsDirectory() {
		label += directorySuffix
	}
	if node.LinkTarget != "" {
		label += linkArrow + node.LinkTarget
	}
	return label + nodeMarker(node)
}

func nodeMarker(node *types.TreeNode) string {
	switch node.Reason {
	case types.ReasonNone:
		return ""
	case types.ReasonTruncated:
		return truncatedMarker
	case types.ReasonBinary:
		return binaryMarker
	case types.ReasonUnreadable:
		return unreadableMarker
	}
	return fmt.Sprintf(excludedMarkerFormat, node.Reason)
}

// RenderContent concatenates the text of every content-bearing file in walk order.
// Admitted files without usable text and oversized files get a one-line placeholder.
func RenderContent(root *types.TreeNode, maxFileSize int64) string {
	var builder strings.Builder
	if root != nil {
		renderContentNode(&builder, root, maxFileSize)
	}
	return builder.String()
}

func renderContentNode(builder *strings.Builder, node *types.TreeNode, maxFileSize int64) {
	if node.IsDirectory() {
		for _, child := range node.Children {
			renderContentNode(builder, child, maxFileSize)
		}
		return
	}
	body, listed := contentBody(node, maxFileSize)
	if !listed {
		return
	}
	builder.WriteString(contentSeparator)
	builder.WriteString("\n")
	if node.Kind == types.NodeKindSymlink {
		fmt.Fprintf(builder, symlinkHeaderFormat, node.Path, node.LinkTarget)
	} else {
		fmt.Fprintf(builder, fileHeaderFormat, node.Path)
	}
	builder.WriteString(contentSeparator)
	builder.WriteString("\n")
	builder.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
}

func contentBody(node *types.TreeNode, maxFileSize int64) (string, bool) {
	if node.Reason == types.ReasonTruncated {
		return fmt.Sprintf(truncatedPlaceholderFormat, utils.FormatFileSize(node.Size), utils.FormatFileSize(maxFileSize)), true
	}
	if !node.Included {
		return "", false
	}
	switch node.Reason {
	case types.ReasonBinary:
		return binaryPlaceholder, true
	case types.ReasonUnreadable:
		return unreadablePlaceholder, true
	}
	if node.Content == "" {
		return emptyFilePlaceholder, true
	}
	return node.Content, true
}
