// Package utils contains general helper functions shared by the ingestion packages.
package utils

import (
	"path"
	"path/filepath"
	"strings"
)

// File and directory names with special meaning during a walk.
const (
	// IgnoreFileName is the name of the tool-specific ignore file.
	IgnoreFileName = ".ignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// ConfigFileName is the name of the application configuration file.
	ConfigFileName = "ingest.yaml"
	// GlobalConfigDirectoryName holds the per-user configuration file.
	GlobalConfigDirectoryName = ".ingest"
)

const pathSegmentSeparator = "/"

// RelativePathOrSelf calculates the slash-separated relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// JoinRelative joins a slash-separated parent and child, treating "" as the root.
func JoinRelative(parent, child string) string {
	if parent == "" || parent == "." {
		return child
	}
	return parent + pathSegmentSeparator + child
}

// IsWithin reports whether candidate equals root or lies beneath it. Both paths
// must be absolute and cleaned.
func IsWithin(root, candidate string) bool {
	if candidate == root {
		return true
	}
	relativePath, relErr := filepath.Rel(root, candidate)
	if relErr != nil {
		return false
	}
	relativePath = filepath.ToSlash(relativePath)
	return relativePath != ".." && !strings.HasPrefix(relativePath, "../") && !path.IsAbs(relativePath)
}
