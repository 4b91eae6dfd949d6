// Package source turns a locator into a read-only workspace on disk: a local
// directory is used in place, a remote repository is cloned shallowly at a pinned
// commit into temporary storage.
package source

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/temirov/ingest/internal/types"
)

// LocatorKind distinguishes local directories from remote repositories.
type LocatorKind string

const (
	LocatorLocal  LocatorKind = "local"
	LocatorRemote LocatorKind = "remote"
)

const (
	httpsScheme         = "https"
	httpScheme          = "http"
	sshLocatorPrefix    = "git@"
	gitRepositorySuffix = ".git"
	treePathKind        = "tree"
	blobPathKind        = "blob"

	errorUnknownHostDetail    = "unknown git host %q"
	errorUnsupportedScheme    = "unsupported scheme %q"
	errorRepositoryPathDetail = "expected <owner>/<repository> in %q"
	errorParseLocatorDetail   = "cannot parse %q: %v"
	errorEmptyLocatorDetail   = "empty source"
	errorLocalPathDetail      = "cannot resolve path: %v"
)

// KnownGitHosts are accepted as remote hosts without a scheme.
var KnownGitHosts = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"gitea.com",
	"codeberg.org",
	"gist.github.com",
}

var commitPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Locator is a parsed source. Remote locators carry the ref and subpath encoded in a
// browse URL tail such as /tree/<ref>/<path>; explicit request fields take precedence.
type Locator struct {
	Kind       LocatorKind
	Path       string
	URL        string
	Host       string
	Owner      string
	Repository string
	Ref        string
	Subpath    string
}

// Canonical is the identity of the source used in fingerprints.
func (locator Locator) Canonical() string {
	if locator.Kind == LocatorRemote {
		return locator.URL
	}
	return locator.Path
}

// DisplayName is the short name shown in digest summaries.
func (locator Locator) DisplayName() string {
	if locator.Kind == LocatorRemote {
		return locator.Owner + "/" + locator.Repository
	}
	return filepath.Base(locator.Path)
}

// ParseLocator classifies raw as a remote repository or a local path. URLs with an
// http(s) scheme, git@host:owner/repo addresses, and host/owner/repo slugs for git
// hosts are remote; everything else is a local path made absolute.
func ParseLocator(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Locator{}, invalidSource(raw, errorEmptyLocatorDetail)
	}
	if strings.HasPrefix(trimmed, sshLocatorPrefix) {
		hostAndPath := strings.TrimPrefix(trimmed, sshLocatorPrefix)
		host, repositoryPath, found := strings.Cut(hostAndPath, ":")
		if !found {
			return Locator{}, invalidSource(raw, fmt.Sprintf(errorRepositoryPathDetail, trimmed))
		}
		return parseRemote(raw, host, repositoryPath)
	}

	if parsedURL, parseError := url.Parse(trimmed); parseError == nil && parsedURL.Scheme != "" && parsedURL.Host != "" {
		switch strings.ToLower(parsedURL.Scheme) {
		case httpsScheme, httpScheme:
			unescapedPath, unescapeError := url.PathUnescape(parsedURL.EscapedPath())
			if unescapeError != nil {
				return Locator{}, invalidSource(raw, fmt.Sprintf(errorParseLocatorDetail, trimmed, unescapeError))
			}
			return parseRemote(raw, parsedURL.Host, unescapedPath)
		default:
			return Locator{}, invalidSource(raw, fmt.Sprintf(errorUnsupportedScheme, parsedURL.Scheme))
		}
	}

	if firstSegment, remainder, found := strings.Cut(trimmed, "/"); found && looksLikeGitHost(firstSegment) {
		if _, statError := os.Stat(trimmed); statError != nil {
			return parseRemote(raw, firstSegment, remainder)
		}
	}

	absolutePath, absoluteError := filepath.Abs(trimmed)
	if absoluteError != nil {
		return Locator{}, invalidSource(raw, fmt.Sprintf(errorLocalPathDetail, absoluteError))
	}
	return Locator{Kind: LocatorLocal, Path: absolutePath}, nil
}

func parseRemote(raw string, host string, repositoryPath string) (Locator, error) {
	host = strings.ToLower(host)
	if !looksLikeGitHost(host) {
		return Locator{}, invalidSource(raw, fmt.Sprintf(errorUnknownHostDetail, host))
	}
	segments := splitSegments(repositoryPath)
	if len(segments) < 2 {
		return Locator{}, invalidSource(raw, fmt.Sprintf(errorRepositoryPathDetail, repositoryPath))
	}
	owner := segments[0]
	repository := strings.TrimSuffix(segments[1], gitRepositorySuffix)
	if owner == "" || repository == "" {
		return Locator{}, invalidSource(raw, fmt.Sprintf(errorRepositoryPathDetail, repositoryPath))
	}
	locator := Locator{
		Kind:       LocatorRemote,
		URL:        fmt.Sprintf("%s://%s/%s/%s", httpsScheme, host, owner, repository),
		Host:       host,
		Owner:      owner,
		Repository: repository,
	}

	tail := segments[2:]
	if len(tail) >= 2 && (tail[0] == treePathKind || tail[0] == blobPathKind) {
		locator.Ref = tail[1]
		if len(tail) > 2 {
			locator.Subpath = strings.Join(tail[2:], "/")
		}
	}
	return locator, nil
}

// IsCommit reports whether ref is a full 40-character commit hash.
func IsCommit(ref string) bool {
	return commitPattern.MatchString(ref)
}

func looksLikeGitHost(host string) bool {
	host = strings.ToLower(host)
	for _, knownHost := range KnownGitHosts {
		if host == knownHost {
			return true
		}
	}
	return strings.HasPrefix(host, "git.") || strings.HasPrefix(host, "gitlab.") || strings.HasPrefix(host, "github.")
}

func splitSegments(repositoryPath string) []string {
	var segments []string
	for _, segment := range strings.Split(repositoryPath, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func invalidSource(locator string, detail string) error {
	return &types.SourceError{Locator: locator, Kind: types.ErrInvalidSource, Detail: detail}
}
