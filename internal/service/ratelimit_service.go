package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type requestLogRepository interface {
	Insert(ctx context.Context, log *models.RequestLog) error
	CountSince(ctx context.Context, userID, since int64) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
	UsageStats(ctx context.Context, companyID, since int64) (*models.UsageStats, error)
}

// RateLimitService enforces the per-user calendar-day quota. The window
// resets at local midnight, not 24 hours after the first call, and counts are
// derived from the durable request log so restarts and replicas agree.
type RateLimitService struct {
	repo   requestLogRepository
	limit  int
	logger *zap.Logger
}

// NewRateLimitService constructs a rate limiter with a daily limit. A limit
// of zero or less disables enforcement.
func NewRateLimitService(repo requestLogRepository, limit int, logger *zap.Logger) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitService{repo: repo, limit: limit, logger: logger}
}

// MidnightOf returns the start of the calendar day containing t, in t's
// location.
func MidnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Check rejects the request when the user has already spent today's quota.
// The caller records the request afterwards, so a user with exactly limit
// requests since midnight is blocked on the next one.
func (s *RateLimitService) Check(ctx context.Context, userID int64, now time.Time) error {
	if s.limit <= 0 {
		return nil
	}
	count, err := s.repo.CountSince(ctx, userID, MidnightOf(now).Unix())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	if count >= int64(s.limit) {
		s.logger.Warn("daily rate limit exceeded",
			zap.Int64("user_id", userID),
			zap.Int64("count", count),
			zap.Int("limit", s.limit))
		return appErrors.ErrRateLimited
	}
	return nil
}

// Record appends the request to the durable log. A failed write is an error:
// the log is what the limiter counts, so dropping writes would undercount.
func (s *RateLimitService) Record(ctx context.Context, log *models.RequestLog) error {
	if err := s.repo.Insert(ctx, log); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record request")
	}
	return nil
}

// Usage reports a company's traffic since the given instant.
func (s *RateLimitService) Usage(ctx context.Context, companyID int64, since time.Time) (*models.UsageStats, error) {
	stats, err := s.repo.UsageStats(ctx, companyID, since.Unix())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load usage stats")
	}
	return stats, nil
}

// Prune deletes log rows older than the retention window.
func (s *RateLimitService) Prune(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, now.Add(-retention).Unix())
}
