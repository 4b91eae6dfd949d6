package cli

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/cache"
	"github.com/temirov/ingest/internal/config"
	"github.com/temirov/ingest/internal/ingest"
	"github.com/temirov/ingest/internal/metrics"
	"github.com/temirov/ingest/internal/source"
	"github.com/temirov/ingest/internal/tokenizer"
)

const (
	defaultCacheDirectoryName = "ingest"
	badgerDirectoryName       = "badger"

	warningCacheUnavailable     = "digest cache unavailable, continuing without it"
	warningEstimatorUnavailable = "token estimator unavailable"
	warningCloseCache           = "closing digest cache failed"
)

// pipeline is an ingest.Service together with the resources it owns.
type pipeline struct {
	service  *ingest.Service
	backend  cache.Backend
	registry *prometheus.Registry
	logger   *zap.Logger
}

// newPipeline wires the service described by applicationConfiguration. A cache
// backend that cannot be opened is replaced by no cache.
func newPipeline(applicationConfiguration config.ApplicationConfiguration, logger *zap.Logger) (*pipeline, error) {
	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	backend, backendError := newCacheBackend(applicationConfiguration.Cache, logger)
	if backendError != nil {
		logger.Warn(warningCacheUnavailable, zap.String("backend", applicationConfiguration.Cache.Backend), zap.Error(backendError))
		backend = cache.Disabled{}
	}
	coordinator := cache.NewCoordinator(cache.CoordinatorConfig{
		Backend:         backend,
		FreshnessWindow: applicationConfiguration.Cache.FreshnessWindow,
		Metrics:         collector,
		Logger:          logger,
	})

	ingestConfiguration := applicationConfiguration.Ingest
	acquirer := source.NewGitAcquirer(source.AcquirerConfig{
		WorkDirectory: ingestConfiguration.WorkDirectory,
		MaxAttempts:   ingestConfiguration.CloneRetries + 1,
		Logger:        logger,
	})

	service, serviceError := ingest.NewService(ingest.Config{
		Acquirer:                  acquirer,
		Coordinator:               coordinator,
		Estimator:                 newEstimator(applicationConfiguration.Tokens, logger),
		MaxConcurrentAcquisitions: ingestConfiguration.MaxConcurrentAcquisitions,
		BuildTimeout:              ingestConfiguration.BuildTimeout,
		Metrics:                   collector,
		Logger:                    logger,
	})
	if serviceError != nil {
		closeBackend(backend, logger)
		return nil, serviceError
	}
	return &pipeline{service: service, backend: backend, registry: registry, logger: logger}, nil
}

// Close releases the cache backend.
func (wired *pipeline) Close() {
	closeBackend(wired.backend, wired.logger)
}

func closeBackend(backend cache.Backend, logger *zap.Logger) {
	closer, closable := backend.(cache.Closer)
	if !closable {
		return
	}
	if closeError := closer.Close(); closeError != nil {
		logger.Warn(warningCloseCache, zap.String("backend", backend.Name()), zap.Error(closeError))
	}
}

// newEstimator returns nil when estimation is switched off, and an Unavailable
// estimator when the configured one cannot be built.
func newEstimator(tokenConfiguration config.TokenConfiguration, logger *zap.Logger) tokenizer.Estimator {
	if !tokenConfiguration.TokensEnabled() {
		return nil
	}
	estimator, estimatorError := tokenizer.NewEstimator(tokenizer.Config{
		Model:   tokenConfiguration.Model,
		Command: tokenConfiguration.Command,
	})
	if estimatorError != nil {
		logger.Warn(warningEstimatorUnavailable, zap.String("model", tokenConfiguration.Model), zap.Error(estimatorError))
		return tokenizer.Unavailable{Cause: estimatorError}
	}
	return estimator
}

// newCacheBackend opens the backend named by cacheConfiguration.Backend. The tiered
// backend fronts the durable store (S3 when a bucket is configured, then badger,
// then files) with the in-memory LRU.
func newCacheBackend(cacheConfiguration config.CacheConfiguration, logger *zap.Logger) (cache.Backend, error) {
	switch cacheConfiguration.Backend {
	case config.CacheBackendNone:
		return cache.Disabled{}, nil
	case config.CacheBackendMemory:
		return cache.NewMemoryBackend(cacheConfiguration.MemoryEntries)
	case config.CacheBackendFile:
		return cache.NewFileBackend(cacheDirectory(cacheConfiguration))
	case config.CacheBackendS3:
		return newS3Backend(cacheConfiguration)
	case config.CacheBackendBadger:
		return newBadgerBackend(cacheConfiguration, logger)
	case config.CacheBackendTiered:
		front, frontError := cache.NewMemoryBackend(cacheConfiguration.MemoryEntries)
		if frontError != nil {
			return nil, frontError
		}
		back, backError := newDurableBackend(cacheConfiguration, logger)
		if backError != nil {
			return nil, backError
		}
		return cache.NewTieredBackend(front, back, logger), nil
	default:
		return cache.Disabled{}, nil
	}
}

func newDurableBackend(cacheConfiguration config.CacheConfiguration, logger *zap.Logger) (cache.Backend, error) {
	switch {
	case cacheConfiguration.S3.Bucket != "":
		return newS3Backend(cacheConfiguration)
	case cacheConfiguration.Badger.Directory != "":
		return newBadgerBackend(cacheConfiguration, logger)
	default:
		return cache.NewFileBackend(cacheDirectory(cacheConfiguration))
	}
}

func newS3Backend(cacheConfiguration config.CacheConfiguration) (cache.Backend, error) {
	s3Configuration := cacheConfiguration.S3
	return cache.NewS3Backend(cache.S3Config{
		Endpoint:  s3Configuration.Endpoint,
		Region:    s3Configuration.Region,
		AccessKey: s3Configuration.AccessKey,
		SecretKey: s3Configuration.SecretKey,
		Bucket:    s3Configuration.Bucket,
		UseSSL:    s3Configuration.SSLEnabled(),
		Prefix:    s3Configuration.Prefix,
	})
}

func newBadgerBackend(cacheConfiguration config.CacheConfiguration, logger *zap.Logger) (cache.Backend, error) {
	directory := cacheConfiguration.Badger.Directory
	if directory == "" {
		directory = filepath.Join(cacheDirectory(cacheConfiguration), badgerDirectoryName)
	}
	return cache.OpenBadgerBackend(cache.BadgerConfig{
		Directory:       directory,
		FreshnessWindow: cacheConfiguration.FreshnessWindow,
		Logger:          logger,
	})
}

// cacheDirectory is cache.dir, or ingest under the user cache directory.
func cacheDirectory(cacheConfiguration config.CacheConfiguration) string {
	if cacheConfiguration.Directory != "" {
		return cacheConfiguration.Directory
	}
	userCacheDirectory, cacheDirectoryError := os.UserCacheDir()
	if cacheDirectoryError != nil {
		return ""
	}
	return filepath.Join(userCacheDirectory, defaultCacheDirectoryName)
}
