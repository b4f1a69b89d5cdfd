// Package sysconfig serves the feature-flag singleton behind a short
// read-through cache. TripsEnabled is the pilot kill switch consulted on every
// admission, so reads must be cheap; staleness is bounded by the cache TTL.
package sysconfig

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Store abstracts the singleton persistence for testing.
type Store interface {
	Get(ctx context.Context) (*models.SystemConfig, error)
	SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error
}

// Service caches the system config for a short TTL.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	cached   *models.SystemConfig
	cachedAt time.Time
}

// NewService creates a sysconfig service with the given cache TTL.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Service{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the current config, served from cache within the TTL. A read
// failure falls back to the last cached value, then to defaults: the engine
// must not refuse all work because the config read failed.
func (s *Service) Get(ctx context.Context) *models.SystemConfig {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		cfg := s.cached
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	cfg, err := s.store.Get(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to refresh system config", zap.Error(err))

		s.mu.RLock()
		stale := s.cached
		s.mu.RUnlock()
		if stale != nil {
			return stale
		}
		return models.DefaultSystemConfig()
	}

	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = s.now()
	s.mu.Unlock()

	return cfg
}

// SetFlag writes a feature flag and invalidates the cache so the change is
// visible to the next admission immediately on this instance.
func (s *Service) SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error {
	if !models.ValidFlag(flag) {
		return common.NewInvalidArgumentError("unknown feature flag: " + flag)
	}

	if err := s.store.SetFlag(ctx, flag, enabled, updatedBy); err != nil {
		return common.NewInternalError("failed to update feature flag", err)
	}

	s.Invalidate()

	logger.InfoContext(ctx, "feature flag updated",
		zap.String("flag", flag),
		zap.Bool("enabled", enabled),
		zap.String("updated_by", updatedBy.String()),
	)

	return nil
}

// Invalidate drops the cached config.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
