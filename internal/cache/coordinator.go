package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/metrics"
	"github.com/temirov/ingest/internal/utils"
)

// BuildFunc runs the pipeline for one fingerprint. Its context is shared by every
// caller waiting on the build and is cancelled once all of them have gone.
type BuildFunc func(ctx context.Context) (Entry, error)

// Outcome describes how a request was served.
type Outcome struct {
	Entry Entry
	// Cached is set when the entry came from the backend instead of a build.
	Cached bool
	// Shared is set when the caller joined a lookup or build started by another caller.
	Shared bool
}

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Backend         Backend
	FreshnessWindow time.Duration
	Metrics         *metrics.Collector
	Logger          *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator serves entries from a backend and runs at most one build per
// fingerprint at a time. Every failure of the backend degrades to a rebuild.
type Coordinator struct {
	backend         Backend
	freshnessWindow time.Duration
	metrics         *metrics.Collector
	logger          *zap.Logger
	now             func() time.Time

	mutex   sync.Mutex
	flights map[fingerprint.Fingerprint]*flight
}

// flight is the shared, awaitable state of one in-progress lookup and build.
type flight struct {
	done    chan struct{}
	outcome Outcome
	err     error
	waiters int
	cancel  context.CancelFunc
}

// NewCoordinator creates a Coordinator. A nil backend disables storage.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	backend := config.Backend
	if backend == nil {
		backend = Disabled{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		backend:         backend,
		freshnessWindow: config.FreshnessWindow,
		metrics:         config.Metrics,
		logger:          utils.LoggerOrNop(config.Logger),
		now:             now,
		flights:         make(map[fingerprint.Fingerprint]*flight),
	}
}

// GetOrBuild returns the fresh stored entry for key, or the result of build. Callers
// arriving while key is in flight wait for that flight instead of starting another.
// A failed build is never stored; the next request for key builds again. When ctx
// ends, the caller stops waiting; the build itself is cancelled only when no caller
// is left. A request arriving while such an abandoned build is still unwinding
// waits for it to return before starting a new flight, so at most one build per
// key ever holds a workspace.
func (coordinator *Coordinator) GetOrBuild(ctx context.Context, key fingerprint.Fingerprint, build BuildFunc) (Outcome, error) {
	for {
		coordinator.mutex.Lock()
		existing, ok := coordinator.flights[key]
		if !ok {
			break
		}
		if existing.waiters > 0 {
			existing.waiters++
			coordinator.mutex.Unlock()
			coordinator.metrics.Coalesced()
			outcome, err := coordinator.wait(ctx, key, existing)
			outcome.Shared = true
			return outcome, err
		}
		coordinator.mutex.Unlock()
		select {
		case <-existing.done:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}

	flightContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	started := &flight{done: make(chan struct{}), waiters: 1, cancel: cancel}
	coordinator.flights[key] = started
	coordinator.mutex.Unlock()

	go coordinator.run(flightContext, key, started, build)
	return coordinator.wait(ctx, key, started)
}

func (coordinator *Coordinator) wait(ctx context.Context, key fingerprint.Fingerprint, current *flight) (Outcome, error) {
	select {
	case <-current.done:
		coordinator.leave(current)
		return current.outcome, current.err
	case <-ctx.Done():
		coordinator.leave(current)
		coordinator.logger.Debug("caller left in-flight build", zap.String("fingerprint", key.String()), zap.Error(ctx.Err()))
		return Outcome{}, ctx.Err()
	}
}

func (coordinator *Coordinator) leave(current *flight) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	current.waiters--
	if current.waiters == 0 {
		current.cancel()
	}
}

func (coordinator *Coordinator) run(ctx context.Context, key fingerprint.Fingerprint, current *flight, build BuildFunc) {
	defer func() {
		coordinator.mutex.Lock()
		if coordinator.flights[key] == current {
			delete(coordinator.flights, key)
		}
		coordinator.mutex.Unlock()
		close(current.done)
	}()

	if entry := coordinator.lookup(ctx, key); entry != nil {
		current.outcome = Outcome{Entry: *entry, Cached: true}
		return
	}

	finish := coordinator.metrics.BuildStarted()
	buildStarted := coordinator.now()
	entry, buildError := build(ctx)
	finish(coordinator.now().Sub(buildStarted).Seconds(), buildError != nil)
	if buildError != nil {
		current.err = buildError
		return
	}
	current.outcome = Outcome{Entry: entry}
	coordinator.store(ctx, key, entry)
}

// lookup returns a fresh stored entry or nil.
func (coordinator *Coordinator) lookup(ctx context.Context, key fingerprint.Fingerprint) *Entry {
	backendName := coordinator.backend.Name()
	entry, getError := coordinator.backend.Get(ctx, key)
	if getError != nil {
		coordinator.metrics.BackendError(backendName, metrics.OperationGet)
		coordinator.logger.Warn("cache lookup failed; rebuilding",
			zap.String("backend", backendName),
			zap.String("fingerprint", key.String()),
			zap.Error(getError))
		return nil
	}
	if entry == nil {
		coordinator.metrics.CacheLookup(backendName, metrics.ResultMiss)
		return nil
	}
	if !entry.FreshAt(coordinator.now(), coordinator.freshnessWindow) {
		coordinator.metrics.CacheLookup(backendName, metrics.ResultStale)
		return nil
	}
	coordinator.metrics.CacheLookup(backendName, metrics.ResultHit)
	return entry
}

func (coordinator *Coordinator) store(ctx context.Context, key fingerprint.Fingerprint, entry Entry) {
	if putError := coordinator.backend.Put(ctx, key, entry); putError != nil {
		backendName := coordinator.backend.Name()
		coordinator.metrics.BackendError(backendName, metrics.OperationPut)
		coordinator.logger.Warn("cache store failed",
			zap.String("backend", backendName),
			zap.String("fingerprint", key.String()),
			zap.Error(putError))
	}
}
