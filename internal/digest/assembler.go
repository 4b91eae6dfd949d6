// Package digest renders a built tree into the summary, tree and content sections of
// a digest artifact.
package digest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/tokenizer"
	"github.com/temirov/ingest/internal/tree"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	repositoryLineFormat    = "Repository: %s\n"
	directoryLineFormat     = "Directory: %s\n"
	refLineFormat           = "Ref: %s\n"
	subpathLineFormat       = "Subpath: %s\n"
	filesAnalyzedLineFormat = "Files analyzed: %d\n"
	totalSizeLineFormat     = "Total size: %s\n"
	tokensLineFormat        = "Estimated tokens: %s\n"
	truncatedLineFormat     = "Truncated: %s\n"
)

// Identity names the ingested source in the summary.
type Identity struct {
	// Repository is owner/repo for remote sources; empty for local ones.
	Repository string
	// Directory is the local directory name, used when Repository is empty.
	Directory string
	Ref       string
	Subpath   string
}

// Input is everything the assembler needs besides the estimator.
type Input struct {
	Identity    Identity
	Tree        tree.Result
	MaxFileSize int64
}

// Assembler turns a tree into a digest artifact. The estimator is optional; a nil
// estimator or a failed estimate drops only the token line.
type Assembler struct {
	Estimator tokenizer.Estimator
	Logger    *zap.Logger
}

// Assemble renders input. Apart from the token estimate, the result depends on
// nothing but input.
func (assembler *Assembler) Assemble(ctx context.Context, input Input) types.DigestArtifact {
	treeText := RenderTree(input.Tree.Root)
	contentText := RenderContent(input.Tree.Root, input.MaxFileSize)

	stats := types.DigestStats{
		FilesAnalyzed: input.Tree.FilesAnalyzed,
		TotalSize:     input.Tree.TotalSize,
		Truncated:     input.Tree.Truncated,
		Notices:       append([]string(nil), input.Tree.Notices...),
	}
	if estimate, available := assembler.estimate(ctx, treeText+contentText); available {
		stats.EstimatedTokens = &estimate
	}

	return types.DigestArtifact{
		Ref:     input.Identity.Ref,
		Summary: RenderSummary(input.Identity, stats),
		Tree:    treeText,
		Content: contentText,
		Stats:   stats,
	}
}

func (assembler *Assembler) estimate(ctx context.Context, text string) (int, bool) {
	if assembler.Estimator == nil {
		return 0, false
	}
	tokens, estimateError := assembler.Estimator.Estimate(ctx, text)
	if estimateError != nil {
		utils.LoggerOrNop(assembler.Logger).Warn("token estimation unavailable",
			zap.String("estimator", assembler.Estimator.Name()),
			zap.Error(estimateError))
		return 0, false
	}
	return tokens, true
}

// RenderSummary formats the summary block.
func RenderSummary(identity Identity, stats types.DigestStats) string {
	var builder strings.Builder
	if identity.Repository != "" {
		fmt.Fprintf(&builder, repositoryLineFormat, identity.Repository)
	} else {
		fmt.Fprintf(&builder, directoryLineFormat, identity.Directory)
	}
	if identity.Ref != "" {
		fmt.Fprintf(&builder, refLineFormat, identity.Ref)
	}
	if identity.Subpath != "" {
		fmt.Fprintf(&builder, subpathLineFormat, identity.Subpath)
	}
	fmt.Fprintf(&builder, filesAnalyzedLineFormat, stats.FilesAnalyzed)
	fmt.Fprintf(&builder, totalSizeLineFormat, utils.FormatFileSize(stats.TotalSize))
	if stats.EstimatedTokens != nil {
		fmt.Fprintf(&builder, tokensLineFormat, FormatTokenCount(*stats.EstimatedTokens))
	}
	if stats.Truncated {
		for _, notice := range stats.Notices {
			fmt.Fprintf(&builder, truncatedLineFormat, notice)
		}
	}
	return builder.String()
}

// FormatTokenCount abbreviates large counts: 1234 becomes "1.2k", 2500000 becomes "2.5M".
func FormatTokenCount(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}
