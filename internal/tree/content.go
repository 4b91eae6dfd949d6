package tree

import (
	"fmt"
	"os"
	"strings"

	"github.com/temirov/ingest/internal/notebook"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	warningFileReadFormat        = "failed to read file %s: %v"
	warningUndecodableFileFormat = "no supported encoding decodes %s"
	warningNotebookFormat        = "notebook %s converted as plain text: %v"
	warningNotebookNoteFormat    = "notebook %s: %s"
)

// readContent reads and classifies one admitted file. It returns the decoded text and
// ReasonNone, or an empty string and the reason the file carries no content.
//
// #nosec G304
func readContent(filePath string, relativePath string, warn func(string)) (string, types.ExclusionReason) {
	fileBytes, readError := os.ReadFile(filePath)
	if readError != nil {
		warn(fmt.Sprintf(warningFileReadFormat, relativePath, readError))
		return "", types.ReasonUnreadable
	}
	if len(fileBytes) == 0 {
		return "", types.ReasonNone
	}
	if utils.IsBinary(fileBytes) {
		return "", types.ReasonBinary
	}
	text, decoded := utils.DecodeText(fileBytes)
	if !decoded {
		warn(fmt.Sprintf(warningUndecodableFileFormat, relativePath))
		return "", types.ReasonUnreadable
	}
	if strings.HasSuffix(strings.ToLower(relativePath), notebook.Extension) {
		return convertNotebook(text, relativePath, warn), types.ReasonNone
	}
	return text, types.ReasonNone
}

// convertNotebook renders a notebook as a Python script, keeping the raw text when
// the document cannot be parsed.
func convertNotebook(text string, relativePath string, warn func(string)) string {
	script, convertError := notebook.Convert([]byte(text), notebook.Options{
		IncludeOutput: true,
		Warn: func(message string) {
			warn(fmt.Sprintf(warningNotebookNoteFormat, relativePath, message))
		},
	})
	if convertError != nil {
		warn(fmt.Sprintf(warningNotebookFormat, relativePath, convertError))
		return text
	}
	return script
}
