package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/alx-report/report-api/pkg/errors"
)

// CacheRepository abstracts the durable response-cache table.
type CacheRepository interface {
	Get(ctx context.Context, cacheKey string, companyID int64, now int64) (json.RawMessage, error)
	Set(ctx context.Context, cacheKey string, companyID int64, payload json.RawMessage, now, expiresAt int64) error
	InvalidateCompany(ctx context.Context, companyID int64) (int64, error)
	Sweep(ctx context.Context, cutoff int64) (int64, error)
}

// CacheService orchestrates response-cache reads and writes. A disabled
// service answers every lookup with a miss, so callers never branch on
// whether caching is configured.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active at the service level.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get retrieves a cached payload, reporting whether the lookup hit. Lookup
// errors degrade to a miss so a cache outage never fails a request.
func (s *CacheService) Get(ctx context.Context, cacheKey string, companyID, now int64) (json.RawMessage, bool) {
	if !s.Enabled() {
		return nil, false
	}
	payload, err := s.repo.Get(ctx, cacheKey, companyID, now)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", cacheKey), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return nil, false
	}
	s.metrics.RecordCacheLookup(true)
	return payload, true
}

// Set stores a payload with the given TTL, falling back to the default when
// ttl is not positive. Write failures are logged, not escalated.
func (s *CacheService) Set(ctx context.Context, cacheKey string, companyID int64, payload json.RawMessage, now int64, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, cacheKey, companyID, payload, now, now+int64(ttl.Seconds()))
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", cacheKey), zap.Error(err))
	}
}

// InvalidateCompany drops every entry for a company. Called after a sync pass
// touches the company's reporting rows.
func (s *CacheService) InvalidateCompany(ctx context.Context, companyID int64) {
	if !s.Enabled() {
		return
	}
	removed, err := s.repo.InvalidateCompany(ctx, companyID)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.Int64("company_id", companyID), zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("cache invalidated", zap.Int64("company_id", companyID), zap.Int64("entries", removed))
	}
}

// Sweep bulk-deletes every entry already past its expiry.
func (s *CacheService) Sweep(ctx context.Context, now int64) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	return s.repo.Sweep(ctx, now)
}
