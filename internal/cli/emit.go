package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/temirov/ingest/internal/output"
	"github.com/temirov/ingest/internal/types"
)

const (
	outputFilePermissions = 0o644

	errorWriteOutputFormat   = "writing digest to %s: %w"
	errorWriteStdoutFormat   = "writing digest: %w"
	errorCopyClipboardFormat = "copying digest to clipboard: %w"
)

// emitArtifact renders artifact once and delivers it to every requested destination
// concurrently. When the digest goes to a file, standard output gets the summary.
func emitArtifact(deps dependencies, artifact types.DigestArtifact, options ingestOptions) error {
	rendered, renderError := output.RenderBytes(artifact, options.format)
	if renderError != nil {
		return renderError
	}

	var group errgroup.Group
	toFile := options.outputPath != "" && options.outputPath != standardOutputPath
	if toFile {
		group.Go(func() error {
			if writeError := os.WriteFile(options.outputPath, rendered, outputFilePermissions); writeError != nil {
				return fmt.Errorf(errorWriteOutputFormat, options.outputPath, writeError)
			}
			return nil
		})
	}
	group.Go(func() error {
		var writeError error
		if toFile {
			_, writeError = io.WriteString(deps.stdout, artifact.Summary)
		} else {
			_, writeError = deps.stdout.Write(rendered)
		}
		if writeError != nil {
			return fmt.Errorf(errorWriteStdoutFormat, writeError)
		}
		return nil
	})
	if options.copyToClipboard && deps.copier != nil {
		group.Go(func() error {
			if copyError := deps.copier.Copy(string(rendered)); copyError != nil {
				return fmt.Errorf(errorCopyClipboardFormat, copyError)
			}
			return nil
		})
	}
	return group.Wait()
}
