// Package ingest wires the pipeline together: a request is normalized, pinned to a
// revision, fingerprinted, and served from the cache or built from a fresh workspace.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/ingest/internal/cache"
	"github.com/temirov/ingest/internal/config"
	"github.com/temirov/ingest/internal/digest"
	"github.com/temirov/ingest/internal/filter"
	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/metrics"
	"github.com/temirov/ingest/internal/patterns"
	"github.com/temirov/ingest/internal/source"
	"github.com/temirov/ingest/internal/tokenizer"
	"github.com/temirov/ingest/internal/tree"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

// CredentialEnvironmentVariable supplies the credential when a request carries none.
const CredentialEnvironmentVariable = "GITHUB_TOKEN"

const (
	defaultMaxConcurrentAcquisitions = 4

	errorNormalizeFormat      = "normalizing request: %w"
	errorSubpathMissingFormat = "subpath %q not found"
	errorSubpathEscapeDetail  = "subpath escapes the source root"
	errorSubpathLeavesFormat  = "subpath %q resolves outside the source root"
	errorSourceRootFormat     = "source root unusable: %v"
	errorIgnoreRulesFormat    = "loading ignore files: %w"
	errorBuildTreeFormat      = "building tree: %w"
	errorMissingAcquirer      = "ingest service requires an acquirer"
	warningReleaseWorkspace   = "releasing workspace failed"
	messageDigestBuilt        = "digest built"
	messageWalkWarning        = "walk warning"
)

// Config wires a Service. Only Acquirer is required.
type Config struct {
	Acquirer    source.Acquirer
	Coordinator *cache.Coordinator
	Estimator   tokenizer.Estimator
	// MaxConcurrentAcquisitions bounds checkouts and walks running at once.
	MaxConcurrentAcquisitions int
	// BuildTimeout bounds one build, queueing included; zero disables it.
	BuildTimeout time.Duration
	Metrics      *metrics.Collector
	Logger       *zap.Logger
	Now          func() time.Time
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Service runs ingestions. It is safe for concurrent use.
type Service struct {
	acquirer     source.Acquirer
	coordinator  *cache.Coordinator
	assembler    *digest.Assembler
	admission    *semaphore.Weighted
	buildTimeout time.Duration
	metrics      *metrics.Collector
	logger       *zap.Logger
	now          func() time.Time
	lookupEnv    func(string) (string, bool)
}

// NewService creates a Service. Without a coordinator every request builds.
func NewService(cfg Config) (*Service, error) {
	if cfg.Acquirer == nil {
		return nil, errors.New(errorMissingAcquirer)
	}
	logger := utils.LoggerOrNop(cfg.Logger)
	coordinator := cfg.Coordinator
	if coordinator == nil {
		coordinator = cache.NewCoordinator(cache.CoordinatorConfig{Metrics: cfg.Metrics, Logger: logger})
	}
	maxConcurrent := cfg.MaxConcurrentAcquisitions
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentAcquisitions
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lookupEnv := cfg.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Service{
		acquirer:     cfg.Acquirer,
		coordinator:  coordinator,
		assembler:    &digest.Assembler{Estimator: cfg.Estimator, Logger: logger},
		admission:    semaphore.NewWeighted(int64(maxConcurrent)),
		buildTimeout: cfg.BuildTimeout,
		metrics:      cfg.Metrics,
		logger:       logger,
		now:          now,
		lookupEnv:    lookupEnv,
	}, nil
}

// job is a request resolved far enough to be fingerprinted.
type job struct {
	request     types.IngestionRequest
	locator     source.Locator
	ref         source.ResolvedRef
	fingerprint fingerprint.Fingerprint
}

// Ingest returns the digest for request. Identical requests share one build and,
// once it succeeds, its cached result until the entry goes stale. Request errors
// (invalid source, authentication, pattern syntax) are returned as they are.
func (service *Service) Ingest(ctx context.Context, request types.IngestionRequest) (types.DigestArtifact, error) {
	prepared, prepareError := service.prepare(ctx, request)
	if prepareError != nil {
		return types.DigestArtifact{}, prepareError
	}
	outcome, buildError := service.coordinator.GetOrBuild(ctx, prepared.fingerprint, func(buildContext context.Context) (cache.Entry, error) {
		return service.build(buildContext, prepared)
	})
	if buildError != nil {
		return types.DigestArtifact{}, buildError
	}
	service.logger.Debug("digest served",
		zap.String("fingerprint", prepared.fingerprint.String()),
		zap.Bool("cached", outcome.Cached),
		zap.Bool("shared", outcome.Shared))
	return outcome.Entry.Artifact, nil
}

// prepare normalizes request, applies the locator's browse-URL ref and subpath,
// checks every pattern, and pins the revision.
func (service *Service) prepare(ctx context.Context, request types.IngestionRequest) (job, error) {
	normalized, normalizeError := request.Normalize()
	if normalizeError != nil {
		return job{}, fmt.Errorf(errorNormalizeFormat, normalizeError)
	}
	locator, parseError := source.ParseLocator(normalized.Source)
	if parseError != nil {
		return job{}, parseError
	}
	if normalized.Ref == "" {
		normalized.Ref = locator.Ref
	}
	if normalized.Subpath == "" && locator.Subpath != "" {
		cleanedSubpath, valid := types.CleanSubpath(locator.Subpath)
		if !valid {
			return job{}, &types.SourceError{Locator: normalized.Source, Kind: types.ErrInvalidSource, Detail: errorSubpathEscapeDetail}
		}
		normalized.Subpath = cleanedSubpath
	}
	if normalized.Credential == "" && locator.Kind == source.LocatorRemote {
		if token, found := service.lookupEnv(CredentialEnvironmentVariable); found {
			normalized.Credential = token
		}
	}
	if _, policyError := filter.NewPolicy(normalized, patterns.Ruleset{}); policyError != nil {
		return job{}, policyError
	}

	resolved, resolveError := service.acquirer.ResolveRef(ctx, locator, normalized.Ref, normalized.Credential)
	if resolveError != nil {
		return job{}, resolveError
	}
	key := fingerprint.KeyFor(normalized, locator.Canonical(), resolved.Key())
	return job{
		request:     normalized,
		locator:     locator,
		ref:         resolved,
		fingerprint: fingerprint.Compute(key),
	}, nil
}

// build acquires a workspace under the admission limit, walks it, and assembles the
// artifact. The workspace is released on every return path.
func (service *Service) build(ctx context.Context, prepared job) (cache.Entry, error) {
	if service.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, service.buildTimeout)
		defer cancel()
	}

	dequeue := service.metrics.AcquisitionQueued()
	acquireError := service.admission.Acquire(ctx, 1)
	dequeue()
	if acquireError != nil {
		return cache.Entry{}, acquireError
	}
	defer service.admission.Release(1)

	request := prepared.request
	workspace, checkoutError := service.acquirer.Checkout(ctx, source.CheckoutRequest{
		Locator:           prepared.locator,
		Ref:               prepared.ref,
		Subpath:           request.Subpath,
		Credential:        request.Credential,
		IncludeSubmodules: request.IncludeSubmodules,
	})
	if checkoutError != nil {
		return cache.Entry{}, checkoutError
	}
	defer func() {
		if releaseError := workspace.Release(); releaseError != nil {
			service.logger.Warn(warningReleaseWorkspace, zap.String("root", workspace.Root), zap.Error(releaseError))
		}
	}()

	scope, scopeError := scopeToSubpath(workspace, request)
	if scopeError != nil {
		return cache.Entry{}, scopeError
	}
	warn := func(message string) {
		service.logger.Debug(messageWalkWarning, zap.String("fingerprint", prepared.fingerprint.String()), zap.String("detail", message))
	}
	var ancestorRules patterns.Ruleset
	if !request.IncludeGitignored {
		loadedRules, loadError := config.LoadAncestorIgnoreRules(ctx, scope.workspaceRoot, "", scope.base, warn)
		if loadError != nil {
			return cache.Entry{}, fmt.Errorf(errorIgnoreRulesFormat, loadError)
		}
		ancestorRules = loadedRules
	}
	policy, policyError := filter.NewPolicy(scope.request, ancestorRules)
	if policyError != nil {
		return cache.Entry{}, policyError
	}

	builder := &tree.Builder{Policy: policy.WithIgnoreBase(scope.base), Warn: warn}
	result, buildError := builder.Build(ctx, scope.walkRoot)
	if buildError != nil {
		return cache.Entry{}, fmt.Errorf(errorBuildTreeFormat, buildError)
	}
	if prepared.locator.Kind == source.LocatorRemote && request.Subpath == "" {
		result.Root.Name = prepared.locator.Repository
	}
	result.Notices = append(result.Notices, workspace.Warnings...)

	artifact := service.assembler.Assemble(ctx, digest.Input{
		Identity:    identityFor(prepared),
		Tree:        result,
		MaxFileSize: request.MaxFileSize,
	})
	createdAt := service.now().UTC()
	artifact.Source = prepared.locator.Canonical()
	artifact.Fingerprint = prepared.fingerprint.String()
	artifact.CreatedAt = createdAt

	service.logger.Info(messageDigestBuilt,
		zap.String("source", artifact.Source),
		zap.String("fingerprint", artifact.Fingerprint),
		zap.Int("files", artifact.Stats.FilesAnalyzed),
		zap.Int64("bytes", artifact.Stats.TotalSize),
		zap.Bool("truncated", artifact.Stats.Truncated))
	return cache.Entry{Artifact: artifact, CreatedAt: createdAt, Mutable: !prepared.ref.Immutable}, nil
}

// walkScope locates a request's walk inside its workspace.
type walkScope struct {
	// workspaceRoot is canonical. walkRoot is canonical too unless it is the
	// workspace root itself, which keeps its name as given.
	workspaceRoot string
	walkRoot      string
	// base is walkRoot relative to workspaceRoot, slash separated, "" for the root.
	base    string
	request types.IngestionRequest
}

// scopeToSubpath resolves the subpath through any links and confines it to the
// workspace. A subpath naming a single file walks its parent with the file as the
// only include pattern.
func scopeToSubpath(workspace *source.Workspace, request types.IngestionRequest) (walkScope, error) {
	invalid := func(detail string) error {
		return &types.SourceError{Locator: request.Source, Kind: types.ErrInvalidSource, Detail: detail}
	}
	absoluteRoot, absoluteError := filepath.Abs(workspace.Root)
	if absoluteError != nil {
		return walkScope{}, invalid(fmt.Sprintf(errorSourceRootFormat, absoluteError))
	}
	workspaceRoot, rootError := filepath.EvalSymlinks(absoluteRoot)
	if rootError != nil {
		return walkScope{}, invalid(fmt.Sprintf(errorSourceRootFormat, rootError))
	}
	if request.Subpath == "" {
		return walkScope{workspaceRoot: workspaceRoot, walkRoot: absoluteRoot, request: request}, nil
	}
	absoluteTarget, targetError := filepath.Abs(workspace.Path(request.Subpath))
	if targetError != nil {
		return walkScope{}, invalid(fmt.Sprintf(errorSubpathMissingFormat, request.Subpath))
	}
	target, resolveError := filepath.EvalSymlinks(absoluteTarget)
	if resolveError != nil {
		return walkScope{}, invalid(fmt.Sprintf(errorSubpathMissingFormat, request.Subpath))
	}
	if !utils.IsWithin(workspaceRoot, target) {
		return walkScope{}, invalid(fmt.Sprintf(errorSubpathLeavesFormat, request.Subpath))
	}
	info, statError := os.Stat(target)
	if statError != nil {
		return walkScope{}, invalid(fmt.Sprintf(errorSubpathMissingFormat, request.Subpath))
	}

	scope := walkScope{workspaceRoot: workspaceRoot, walkRoot: target, request: request}
	if !info.IsDir() {
		scope.walkRoot = filepath.Dir(target)
		scope.request.IncludePatterns = []string{"/" + filepath.Base(target)}
	}
	if relativeRoot := utils.RelativePathOrSelf(scope.walkRoot, workspaceRoot); relativeRoot != "." {
		scope.base = relativeRoot
	}
	return scope, nil
}

func identityFor(prepared job) digest.Identity {
	identity := digest.Identity{Subpath: prepared.request.Subpath}
	if prepared.locator.Kind == source.LocatorRemote {
		identity.Repository = prepared.locator.DisplayName()
		identity.Ref = prepared.ref.Name
		return identity
	}
	identity.Directory = prepared.locator.DisplayName()
	return identity
}
