package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	defaultMaxAttempts     = 4
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second

	temporaryDirectoryPattern = "ingest-*"
	checkoutDirectoryName     = "repository"
	headReference             = "HEAD"
	symbolicRefMarker         = "ref:"
	headsPrefix               = "refs/heads/"
	tagsPrefix                = "refs/tags/"
	peeledTagSuffix           = "^{}"

	errorNotDirectoryDetail  = "not a directory"
	errorMissingPathDetail   = "path does not exist"
	errorRefNotFoundDetail   = "ref %q not found"
	errorDefaultBranchDetail = "cannot determine default branch"
	errorWorkDirectoryFormat = "creating work directory: %w"
	warningSubmoduleFormat   = "%v: %s"
	messageRetryingGit       = "retrying git operation"
)

// Acquirer resolves refs and produces workspaces.
type Acquirer interface {
	ResolveRef(ctx context.Context, locator Locator, ref string, credential string) (ResolvedRef, error)
	Checkout(ctx context.Context, request CheckoutRequest) (*Workspace, error)
}

// CheckoutRequest describes one acquisition.
type CheckoutRequest struct {
	Locator           Locator
	Ref               ResolvedRef
	Subpath           string
	Credential        string
	IncludeSubmodules bool
}

// AcquirerConfig configures a GitAcquirer.
type AcquirerConfig struct {
	// WorkDirectory holds temporary checkouts; the system temporary directory when empty.
	WorkDirectory string
	// MaxAttempts bounds clone attempts, the first one included.
	MaxAttempts     int
	InitialInterval time.Duration
	Logger          *zap.Logger
}

// GitAcquirer serves local directories in place and clones remote repositories with
// the git binary.
type GitAcquirer struct {
	workDirectory   string
	maxAttempts     int
	initialInterval time.Duration
	logger          *zap.Logger
}

// NewGitAcquirer creates a GitAcquirer.
func NewGitAcquirer(config AcquirerConfig) *GitAcquirer {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	initialInterval := config.InitialInterval
	if initialInterval <= 0 {
		initialInterval = defaultInitialInterval
	}
	return &GitAcquirer{
		workDirectory:   config.WorkDirectory,
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		logger:          utils.LoggerOrNop(config.Logger),
	}
}

// ResolveRef pins ref for locator. Local directories resolve to an empty mutable ref.
// An empty remote ref resolves to the default branch; a 40-character hex ref is taken
// as a commit without contacting the remote.
func (acquirer *GitAcquirer) ResolveRef(ctx context.Context, locator Locator, ref string, credential string) (ResolvedRef, error) {
	if locator.Kind != LocatorRemote {
		if statError := requireDirectory(locator.Path); statError != nil {
			return ResolvedRef{}, statError
		}
		return ResolvedRef{}, nil
	}
	if IsCommit(ref) {
		commit := strings.ToLower(ref)
		return ResolvedRef{Name: commit, Commit: commit, Immutable: true}, nil
	}

	arguments := append(authArguments(locator.Host, credential), "ls-remote")
	if ref == "" {
		arguments = append(arguments, "--symref", locator.URL, headReference)
	} else {
		arguments = append(arguments, locator.URL, ref)
	}
	output, runError := acquirer.retry(ctx, locator, credential, func() ([]byte, error) {
		return runGitCommand(ctx, "", arguments...)
	})
	if runError != nil {
		return ResolvedRef{}, runError
	}
	if ref == "" {
		return parseDefaultBranch(locator, output)
	}
	return parseNamedRef(locator, ref, output)
}

// Checkout acquires the workspace for request. Remote repositories are cloned
// shallowly at request.Ref.Commit; a subpath narrows the clone to a sparse, blobless
// one. Submodule failures are recorded as warnings. Temporary storage is removed on
// every failure path; on success the caller owns it through Workspace.Release.
func (acquirer *GitAcquirer) Checkout(ctx context.Context, request CheckoutRequest) (*Workspace, error) {
	locator := request.Locator
	if locator.Kind != LocatorRemote {
		if statError := requireDirectory(locator.Path); statError != nil {
			return nil, statError
		}
		return NewWorkspace(locator.Path, request.Ref, nil), nil
	}

	if request.Ref.Commit == "" {
		resolved, resolveError := acquirer.ResolveRef(ctx, locator, request.Ref.Name, request.Credential)
		if resolveError != nil {
			return nil, resolveError
		}
		request.Ref = resolved
	}

	temporaryDirectory, createError := os.MkdirTemp(acquirer.workDirectory, temporaryDirectoryPattern)
	if createError != nil {
		return nil, fmt.Errorf(errorWorkDirectoryFormat, createError)
	}
	workspace := NewWorkspace(filepath.Join(temporaryDirectory, checkoutDirectoryName), request.Ref, func() error {
		return os.RemoveAll(temporaryDirectory)
	})

	_, cloneError := acquirer.retry(ctx, locator, request.Credential, func() ([]byte, error) {
		return nil, acquirer.clone(ctx, workspace.Root, request)
	})
	if cloneError != nil {
		_ = workspace.Release()
		return nil, cloneError
	}

	if request.IncludeSubmodules {
		submoduleArguments := append(authArguments(locator.Host, request.Credential), "submodule", "update", "--init", "--recursive", "--depth=1")
		if _, submoduleError := runGitCommand(ctx, workspace.Root, submoduleArguments...); submoduleError != nil {
			if ctx.Err() != nil {
				_ = workspace.Release()
				return nil, ctx.Err()
			}
			warning := fmt.Sprintf(warningSubmoduleFormat, types.ErrSubmoduleFailure, redact(submoduleError.Error(), request.Credential))
			workspace.Warnings = append(workspace.Warnings, warning)
			acquirer.logger.Warn("submodules omitted", zap.String("source", locator.URL), zap.String("detail", warning))
		}
	}
	return workspace, nil
}

// clone runs one complete attempt into target, starting from an empty directory.
func (acquirer *GitAcquirer) clone(ctx context.Context, target string, request CheckoutRequest) error {
	if removeError := os.RemoveAll(target); removeError != nil {
		return removeError
	}
	locator := request.Locator
	auth := authArguments(locator.Host, request.Credential)

	cloneArguments := append(append([]string{}, auth...), "clone", "--single-branch", "--no-checkout", "--depth=1")
	if request.Subpath != "" {
		cloneArguments = append(cloneArguments, "--filter=blob:none", "--sparse")
	}
	cloneArguments = append(cloneArguments, locator.URL, target)
	if _, runError := runGitCommand(ctx, filepath.Dir(target), cloneArguments...); runError != nil {
		return runError
	}

	if request.Subpath != "" {
		sparseArguments := append([]string{"sparse-checkout", "set", "--no-cone"}, sparsePatterns(request.Subpath)...)
		if _, runError := runGitCommand(ctx, target, sparseArguments...); runError != nil {
			return runError
		}
	}

	fetchArguments := append(append([]string{}, auth...), "fetch", "--depth=1", "origin", request.Ref.Commit)
	if _, runError := runGitCommand(ctx, target, fetchArguments...); runError != nil {
		return runError
	}
	_, runError := runGitCommand(ctx, target, "checkout", request.Ref.Commit)
	return runError
}

// sparsePatterns lists the subpath plus the ignore files of every directory above
// it, since those rules also govern the subpath's walk.
func sparsePatterns(subpath string) []string {
	sparseSet := []string{"/" + subpath}
	segments := strings.Split(subpath, "/")
	for depth := 0; depth < len(segments); depth++ {
		directory := strings.Join(segments[:depth], "/")
		for _, ignoreFileName := range []string{utils.GitIgnoreFileName, utils.IgnoreFileName} {
			sparseSet = append(sparseSet, "/"+utils.JoinRelative(directory, ignoreFileName))
		}
	}
	return sparseSet
}

// retry runs operation with exponential backoff. Only clone failures are retried;
// authentication and source errors stop at once.
func (acquirer *GitAcquirer) retry(ctx context.Context, locator Locator, credential string, operation func() ([]byte, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = acquirer.initialInterval
	policy.MaxInterval = defaultMaxInterval

	attempt := func() ([]byte, error) {
		output, runError := operation()
		if runError == nil {
			return output, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		classified := classifyGitError(locator.URL, credential, runError)
		if !isRetryable(classified) {
			return nil, backoff.Permanent(classified)
		}
		return nil, classified
	}
	notify := func(retryError error, wait time.Duration) {
		acquirer.logger.Warn(messageRetryingGit,
			zap.String("source", locator.URL),
			zap.Duration("wait", wait),
			zap.Error(retryError))
	}
	output, retryError := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(acquirer.maxAttempts)),
		backoff.WithNotify(notify))
	if retryError != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return output, retryError
}

func requireDirectory(directoryPath string) error {
	info, statError := os.Stat(directoryPath)
	if statError != nil {
		return invalidSource(directoryPath, errorMissingPathDetail)
	}
	if !info.IsDir() {
		return invalidSource(directoryPath, errorNotDirectoryDetail)
	}
	return nil
}

// parseDefaultBranch reads `git ls-remote --symref <url> HEAD` output:
//
//	ref: refs/heads/main	HEAD
//	<sha>	HEAD
func parseDefaultBranch(locator Locator, output []byte) (ResolvedRef, error) {
	var resolved ResolvedRef
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == symbolicRefMarker && len(fields) >= 3 {
			resolved.Name = strings.TrimPrefix(fields[1], headsPrefix)
			continue
		}
		if fields[1] == headReference && IsCommit(fields[0]) {
			resolved.Commit = strings.ToLower(fields[0])
		}
	}
	if resolved.Commit == "" {
		return ResolvedRef{}, invalidSource(locator.URL, errorDefaultBranchDetail)
	}
	if resolved.Name == "" {
		resolved.Name = headReference
	}
	return resolved, nil
}

// parseNamedRef picks the commit for ref from `git ls-remote <url> <ref>` output.
// A peeled annotated tag wins over the tag object, tags and branches match exactly.
func parseNamedRef(locator Locator, ref string, output []byte) (ResolvedRef, error) {
	candidates := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || !IsCommit(fields[0]) {
			continue
		}
		candidates[fields[1]] = strings.ToLower(fields[0])
	}
	lookupOrder := []string{
		headsPrefix + ref,
		tagsPrefix + ref + peeledTagSuffix,
		tagsPrefix + ref,
		ref,
	}
	for _, candidate := range lookupOrder {
		if commit, found := candidates[candidate]; found {
			return ResolvedRef{Name: ref, Commit: commit}, nil
		}
	}
	return ResolvedRef{}, invalidSource(locator.URL, fmt.Sprintf(errorRefNotFoundDetail, ref))
}
