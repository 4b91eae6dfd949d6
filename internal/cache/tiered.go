package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/fingerprint"
	"github.com/temirov/ingest/internal/utils"
)

// TieredBackend reads through a fast front backend to a durable back backend and
// fills the front on back hits.
type TieredBackend struct {
	front  Backend
	back   Backend
	logger *zap.Logger
}

// NewTieredBackend layers front over back.
func NewTieredBackend(front Backend, back Backend, logger *zap.Logger) *TieredBackend {
	return &TieredBackend{front: front, back: back, logger: utils.LoggerOrNop(logger)}
}

// Name identifies the backend.
func (backend *TieredBackend) Name() string {
	return "tiered(" + backend.front.Name() + "," + backend.back.Name() + ")"
}

// Get consults the front first. A failing front tier is skipped.
func (backend *TieredBackend) Get(ctx context.Context, key fingerprint.Fingerprint) (*Entry, error) {
	entry, frontError := backend.front.Get(ctx, key)
	if frontError == nil && entry != nil {
		return entry, nil
	}
	if frontError != nil {
		backend.logger.Warn("front cache tier failed", zap.String("backend", backend.front.Name()), zap.Error(frontError))
	}

	entry, backError := backend.back.Get(ctx, key)
	if backError != nil || entry == nil {
		return nil, backError
	}
	if fillError := backend.front.Put(ctx, key, *entry); fillError != nil {
		backend.logger.Warn("front cache fill failed", zap.String("backend", backend.front.Name()), zap.Error(fillError))
	}
	return entry, nil
}

// Put writes both tiers and reports every failure.
func (backend *TieredBackend) Put(ctx context.Context, key fingerprint.Fingerprint, entry Entry) error {
	return errors.Join(backend.front.Put(ctx, key, entry), backend.back.Put(ctx, key, entry))
}

// Close closes whichever tiers hold resources.
func (backend *TieredBackend) Close() error {
	var closeErrors []error
	for _, tier := range []Backend{backend.front, backend.back} {
		if closer, ok := tier.(Closer); ok {
			closeErrors = append(closeErrors, closer.Close())
		}
	}
	return errors.Join(closeErrors...)
}
