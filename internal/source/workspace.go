package source

import (
	"path/filepath"
	"sync"
)

// ResolvedRef pins a locator to a revision. Name is the branch, tag, or commit the
// caller asked for (or the default branch); Commit is empty for local sources.
type ResolvedRef struct {
	Name      string
	Commit    string
	Immutable bool
}

// Key is the revision identity used in fingerprints.
func (ref ResolvedRef) Key() string {
	if ref.Commit != "" {
		return ref.Commit
	}
	return ref.Name
}

// Workspace is an acquired, read-only source tree. Release frees any temporary
// storage behind it and is safe to call more than once.
type Workspace struct {
	Root     string
	Ref      ResolvedRef
	Warnings []string

	cleanup      func() error
	releaseOnce  sync.Once
	releaseError error
}

// NewWorkspace creates a workspace whose Release runs cleanup once. A nil cleanup
// leaves the tree in place.
func NewWorkspace(root string, ref ResolvedRef, cleanup func() error) *Workspace {
	return &Workspace{Root: root, Ref: ref, cleanup: cleanup}
}

// Path joins a slash-separated subpath onto the workspace root.
func (workspace *Workspace) Path(subpath string) string {
	if subpath == "" {
		return workspace.Root
	}
	return filepath.Join(workspace.Root, filepath.FromSlash(subpath))
}

// Release runs the cleanup, if any. Only the first call does work; later calls
// return the first result.
func (workspace *Workspace) Release() error {
	if workspace == nil {
		return nil
	}
	workspace.releaseOnce.Do(func() {
		if workspace.cleanup != nil {
			workspace.releaseError = workspace.cleanup()
		}
	})
	return workspace.releaseError
}
