// Package notebook converts Jupyter notebooks into plain Python scripts.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Extension is the file extension of notebooks handled by Convert.
const Extension = ".ipynb"

const (
	scriptHeader        = "# Jupyter notebook converted to Python script."
	cellSeparator       = "\n\n"
	docstringDelimiter  = `"""`
	outputHeader        = "\n# Output:\n#   "
	outputLineSeparator = "\n#   "

	cellTypeMarkdown = "markdown"
	cellTypeCode     = "code"
	cellTypeRaw      = "raw"

	outputTypeStream        = "stream"
	outputTypeExecuteResult = "execute_result"
	outputTypeDisplayData   = "display_data"
	outputTypeError         = "error"
	plainTextMimeType       = "text/plain"
)

// ErrInvalidNotebook reports a notebook that cannot be converted.
var ErrInvalidNotebook = errors.New("invalid notebook")

// Options tunes the conversion.
type Options struct {
	IncludeOutput bool
	// Warn receives non-fatal notes such as deprecated worksheet layouts.
	Warn func(string)
}

type document struct {
	Cells      []cell      `json:"cells"`
	Worksheets []worksheet `json:"worksheets"`
}

type worksheet struct {
	Cells []cell `json:"cells"`
}

type cell struct {
	CellType string        `json:"cell_type"`
	Source   multilineText `json:"source"`
	Outputs  []output      `json:"outputs"`
}

type output struct {
	OutputType string                   `json:"output_type"`
	Text       multilineText            `json:"text"`
	Data       map[string]multilineText `json:"data"`
	ErrorName  string                   `json:"ename"`
	ErrorValue string                   `json:"evalue"`
}

// multilineText accepts both notebook encodings of text: a string or a list of lines.
type multilineText []string

func (text *multilineText) UnmarshalJSON(data []byte) error {
	var lines []string
	if listError := json.Unmarshal(data, &lines); listError == nil {
		*text = lines
		return nil
	}
	var single string
	if stringError := json.Unmarshal(data, &single); stringError != nil {
		return stringError
	}
	*text = multilineText{single}
	return nil
}

// Convert renders notebook JSON as a Python script. Markdown and raw cells become
// triple-quoted blocks and code cell outputs are appended as comments.
func Convert(data []byte, options Options) (string, error) {
	var parsed document
	if decodeError := json.Unmarshal(data, &parsed); decodeError != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNotebook, decodeError)
	}

	cells := parsed.Cells
	if len(parsed.Worksheets) > 0 {
		warn(options, "notebook uses deprecated worksheets; combining them into one script")
		cells = nil
		for _, sheet := range parsed.Worksheets {
			cells = append(cells, sheet.Cells...)
		}
	}

	sections := []string{scriptHeader}
	for cellIndex, notebookCell := range cells {
		rendered, renderError := renderCell(notebookCell, options.IncludeOutput)
		if renderError != nil {
			return "", fmt.Errorf("%w: cell %d: %v", ErrInvalidNotebook, cellIndex, renderError)
		}
		if rendered != "" {
			sections = append(sections, rendered)
		}
	}
	return strings.Join(sections, cellSeparator) + "\n", nil
}

func renderCell(notebookCell cell, includeOutput bool) (string, error) {
	switch notebookCell.CellType {
	case cellTypeMarkdown, cellTypeRaw, cellTypeCode:
	default:
		return "", fmt.Errorf("unknown cell type %q", notebookCell.CellType)
	}

	source := strings.Join(notebookCell.Source, "")
	if source == "" {
		return "", nil
	}
	if notebookCell.CellType != cellTypeCode {
		return docstringDelimiter + "\n" + source + "\n" + docstringDelimiter, nil
	}
	if !includeOutput || len(notebookCell.Outputs) == 0 {
		return source, nil
	}

	var outputLines []string
	for _, cellOutput := range notebookCell.Outputs {
		lines, outputError := outputText(cellOutput)
		if outputError != nil {
			return "", outputError
		}
		outputLines = append(outputLines, lines...)
	}
	return source + outputHeader + strings.Join(outputLines, outputLineSeparator), nil
}

func outputText(cellOutput output) ([]string, error) {
	switch cellOutput.OutputType {
	case outputTypeStream:
		return cellOutput.Text, nil
	case outputTypeExecuteResult, outputTypeDisplayData:
		return cellOutput.Data[plainTextMimeType], nil
	case outputTypeError:
		return []string{fmt.Sprintf("Error: %s: %s", cellOutput.ErrorName, cellOutput.ErrorValue)}, nil
	default:
		return nil, fmt.Errorf("unknown output type %q", cellOutput.OutputType)
	}
}

func warn(options Options, message string) {
	if options.Warn != nil {
		options.Warn(message)
	}
}
