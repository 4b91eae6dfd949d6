package notebook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertRendersCellsAndOutputs(t *testing.T) {
	notebookJSON := `{
  "cells": [
    {"cell_type": "markdown", "source": ["# Title\n", "text"]},
    {"cell_type": "code", "source": "print('hi')", "outputs": [
      {"output_type": "stream", "text": ["hi\n"]},
      {"output_type": "execute_result", "data": {"text/plain": ["42"]}},
      {"output_type": "error", "ename": "ValueError", "evalue": "bad"}
    ]},
    {"cell_type": "code", "source": [], "outputs": []},
    {"cell_type": "raw", "source": "raw text"}
  ]
}`
	script, convertError := Convert([]byte(notebookJSON), Options{IncludeOutput: true})
	require.NoError(t, convertError)
	expected := "# Jupyter notebook converted to Python script.\n\n" +
		"\"\"\"\n# Title\ntext\n\"\"\"\n\n" +
		"print('hi')\n# Output:\n#   hi\n\n#   42\n#   Error: ValueError: bad\n\n" +
		"\"\"\"\nraw text\n\"\"\"\n"
	require.Equal(t, expected, script)
}

func TestConvertWithoutOutputs(t *testing.T) {
	notebookJSON := `{"cells": [{"cell_type": "code", "source": "x = 1", "outputs": [{"output_type": "stream", "text": "1"}]}]}`
	script, convertError := Convert([]byte(notebookJSON), Options{})
	require.NoError(t, convertError)
	require.Equal(t, "# Jupyter notebook converted to Python script.\n\nx = 1\n", script)
}

func TestConvertCombinesWorksheets(t *testing.T) {
	var warnings []string
	notebookJSON := `{"worksheets": [{"cells": [{"cell_type": "code", "source": "a"}]}, {"cells": [{"cell_type": "code", "source": "b"}]}]}`
	script, convertError := Convert([]byte(notebookJSON), Options{Warn: func(message string) { warnings = append(warnings, message) }})
	require.NoError(t, convertError)
	require.Equal(t, "# Jupyter notebook converted to Python script.\n\na\n\nb\n", script)
	require.Len(t, warnings, 1)
}

func TestConvertRejectsInvalidInput(t *testing.T) {
	_, convertError := Convert([]byte("{not json"), Options{})
	require.True(t, errors.Is(convertError, ErrInvalidNotebook))

	_, convertError = Convert([]byte(`{"cells": [{"cell_type": "widget", "source": "x"}]}`), Options{})
	require.True(t, errors.Is(convertError, ErrInvalidNotebook))
}
