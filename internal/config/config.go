// Package config loads ignore files into compiled rulesets and reads application settings.
package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/ingest/internal/patterns"
	"github.com/temirov/ingest/internal/utils"
)

const (
	errorLoadIgnoreFileFormat = "loading %s from %s: %w"
	errorCompileIgnoreFormat  = "compiling %s: %w"
	warningCloseFileFormat    = "failed to close %s: %v"
	errorAbsolutePathFormat   = "abs failed for '%s': %w"
)

// IgnoreFileNames lists the ignore files honored in every directory, in evaluation order.
var IgnoreFileNames = []string{utils.GitIgnoreFileName, utils.IgnoreFileName}

// LoadIgnoreFileLines reads an ignore file and returns its raw lines. A missing file yields no lines.
//
// #nosec G304
func LoadIgnoreFileLines(ignoreFilePath string, warn func(string)) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil && warn != nil {
			warn(fmt.Sprintf(warningCloseFileFormat, ignoreFilePath, closeError))
		}
	}()

	var lines []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return lines, nil
}

// LoadDirectoryIgnoreRules compiles the ignore files declared directly in
// directoryPath. Their rules are scoped to base, the directory's slash-separated
// path relative to the workspace root. A malformed line fails the whole load.
func LoadDirectoryIgnoreRules(directoryPath string, base string, warn func(string)) (patterns.Ruleset, error) {
	var ruleset patterns.Ruleset
	for _, ignoreFileName := range IgnoreFileNames {
		lines, loadError := LoadIgnoreFileLines(filepath.Join(directoryPath, ignoreFileName), warn)
		if loadError != nil {
			return patterns.Ruleset{}, fmt.Errorf(errorLoadIgnoreFileFormat, ignoreFileName, directoryPath, loadError)
		}
		if len(lines) == 0 {
			continue
		}
		if appendError := ruleset.AppendIgnoreFile(base, lines); appendError != nil {
			return patterns.Ruleset{}, fmt.Errorf(errorCompileIgnoreFormat, utils.JoinRelative(base, ignoreFileName), appendError)
		}
	}
	return ruleset, nil
}

// LoadAncestorIgnoreRules compiles the ignore files of rootDirectoryPath and of
// every directory between it and relativePath, top-down, excluding relativePath
// itself. Each directory's rules are scoped to base joined with its path.
func LoadAncestorIgnoreRules(ctx context.Context, rootDirectoryPath string, base string, relativePath string, warn func(string)) (patterns.Ruleset, error) {
	var ruleset patterns.Ruleset
	if relativePath == "" || relativePath == "." {
		return ruleset, nil
	}
	absoluteRootPath, absolutePathError := filepath.Abs(rootDirectoryPath)
	if absolutePathError != nil {
		return patterns.Ruleset{}, fmt.Errorf(errorAbsolutePathFormat, rootDirectoryPath, absolutePathError)
	}

	segments := strings.Split(relativePath, "/")
	for depth := 0; depth < len(segments); depth++ {
		if contextError := ctx.Err(); contextError != nil {
			return patterns.Ruleset{}, contextError
		}
		relativeDirectory := strings.Join(segments[:depth], "/")
		directoryRules, loadError := LoadDirectoryIgnoreRules(
			filepath.Join(absoluteRootPath, filepath.FromSlash(relativeDirectory)),
			scopedBase(base, relativeDirectory),
			warn,
		)
		if loadError != nil {
			return patterns.Ruleset{}, loadError
		}
		ruleset = ruleset.Concat(directoryRules)
	}
	return ruleset, nil
}

func scopedBase(base string, relativeDirectory string) string {
	if relativeDirectory == "" {
		return base
	}
	return utils.JoinRelative(base, relativeDirectory)
}
