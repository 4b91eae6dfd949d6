// Package output renders digest artifacts for the command line.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/temirov/ingest/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	errorUnsupportedFormat = "unsupported output format %q"
	errorEncodeJSONFormat  = "encoding digest: %w"
)

// Render writes artifact in format. Raw output is the three digest sections as one
// text document; JSON output is the artifact with its stats. Token counts stay
// numeric in JSON; the summary carries the human formatted figure.
func Render(writer io.Writer, artifact types.DigestArtifact, format string) error {
	switch format {
	case types.FormatRaw, "":
		_, writeError := io.WriteString(writer, artifact.Text())
		return writeError
	case types.FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent(indentPrefix, indentSpacer)
		encoder.SetEscapeHTML(false)
		if encodeError := encoder.Encode(artifact); encodeError != nil {
			return fmt.Errorf(errorEncodeJSONFormat, encodeError)
		}
		return nil
	default:
		return fmt.Errorf(errorUnsupportedFormat, format)
	}
}

// RenderBytes renders artifact into memory.
func RenderBytes(artifact types.DigestArtifact, format string) ([]byte, error) {
	var buffer bytes.Buffer
	if renderError := Render(&buffer, artifact, format); renderError != nil {
		return nil, renderError
	}
	return buffer.Bytes(), nil
}
