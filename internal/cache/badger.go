package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/fingerprint"
)

const badgerKeyPrefix = "digest/"

// BadgerConfig holds configuration for the embedded store.
type BadgerConfig struct {
	// Directory holds the database files. Ignored when InMemory is true.
	Directory string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// FreshnessWindow becomes the TTL of mutable entries. Zero disables the TTL.
	FreshnessWindow time.Duration
	Logger          *zap.Logger
}

// BadgerBackend stores blobs in an embedded BadgerDB.
type BadgerBackend struct {
	database        *badger.DB
	freshnessWindow time.Duration
}

// badgerLogger adapts zap to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (adapter *badgerLogger) Errorf(format string, args ...interface{}) {
	adapter.logger.Errorf(format, args...)
}

func (adapter *badgerLogger) Warningf(format string, args ...interface{}) {
	adapter.logger.Warnf(format, args...)
}

func (adapter *badgerLogger) Infof(format string, args ...interface{}) {
	adapter.logger.Debugf(format, args...)
}

func (adapter *badgerLogger) Debugf(format string, args ...interface{}) {
	adapter.logger.Debugf(format, args...)
}

// OpenBadgerBackend opens the database described by cfg. Callers must Close it.
func OpenBadgerBackend(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Directory == "" {
		return nil, errors.New("badger cache directory is required")
	}

	var options badger.Options
	if cfg.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Directory, err)
		}
		options = badger.DefaultOptions(cfg.Directory)
	}
	options = options.WithSyncWrites(!cfg.InMemory).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		options = options.WithLogger(&badgerLogger{logger: cfg.Logger.Sugar()})
	} else {
		options = options.WithLogger(nil)
	}

	database, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{database: database, freshnessWindow: cfg.FreshnessWindow}, nil
}

// Name identifies the backend.
func (backend *BadgerBackend) Name() string { return "badger" }

// Get reads the blob for key. Expired and missing keys are misses.
func (backend *BadgerBackend) Get(ctx context.Context, key fingerprint.Fingerprint) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var blob []byte
	err := backend.database.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return DecodeEntry(key, blob)
}

// Put writes the blob for key. Mutable entries expire with the freshness window.
func (backend *BadgerBackend) Put(ctx context.Context, key fingerprint.Fingerprint, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record := badger.NewEntry(badgerKey(key), EncodeEntry(key, entry))
	if entry.Mutable && backend.freshnessWindow > 0 {
		record = record.WithTTL(backend.freshnessWindow)
	}
	if err := backend.database.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(record)
	}); err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Close releases the database.
func (backend *BadgerBackend) Close() error {
	return backend.database.Close()
}

func badgerKey(key fingerprint.Fingerprint) []byte {
	return []byte(badgerKeyPrefix + key.String())
}
