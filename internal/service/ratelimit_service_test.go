package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type requestLogStub struct {
	logs []models.RequestLog
}

func (s *requestLogStub) Insert(ctx context.Context, log *models.RequestLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

func (s *requestLogStub) CountSince(ctx context.Context, userID, since int64) (int64, error) {
	var count int64
	for _, log := range s.logs {
		if log.UserID == userID && log.TimeCreated >= since {
			count++
		}
	}
	return count, nil
}

func (s *requestLogStub) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	kept := s.logs[:0]
	var removed int64
	for _, log := range s.logs {
		if log.TimeCreated < cutoff {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	s.logs = kept
	return removed, nil
}

func (s *requestLogStub) UsageStats(ctx context.Context, companyID, since int64) (*models.UsageStats, error) {
	return &models.UsageStats{TotalRequests: int64(len(s.logs))}, nil
}

func TestRateLimitBlocksAtExactLimit(t *testing.T) {
	repo := &requestLogStub{}
	limiter := NewRateLimitService(repo, 3, nil)
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Check(context.Background(), 7, now))
		require.NoError(t, limiter.Record(context.Background(), &models.RequestLog{UserID: 7, TimeCreated: now.Unix()}))
	}

	err := limiter.Check(context.Background(), 7, now)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)
}

func TestRateLimitWindowResetsAtMidnight(t *testing.T) {
	repo := &requestLogStub{}
	limiter := NewRateLimitService(repo, 1, nil)

	lateEvening := time.Date(2026, 8, 30, 23, 55, 0, 0, time.UTC)
	require.NoError(t, limiter.Record(context.Background(), &models.RequestLog{UserID: 7, TimeCreated: lateEvening.Unix()}))
	require.Error(t, limiter.Check(context.Background(), 7, lateEvening))

	// Ten minutes later it is a new calendar day, not a new 24h window.
	afterMidnight := time.Date(2026, 8, 31, 0, 5, 0, 0, time.UTC)
	assert.NoError(t, limiter.Check(context.Background(), 7, afterMidnight))
}

func TestRateLimitCountsPerUser(t *testing.T) {
	repo := &requestLogStub{}
	limiter := NewRateLimitService(repo, 1, nil)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	require.NoError(t, limiter.Record(context.Background(), &models.RequestLog{UserID: 7, TimeCreated: now.Unix()}))
	require.Error(t, limiter.Check(context.Background(), 7, now))
	assert.NoError(t, limiter.Check(context.Background(), 8, now))
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	limiter := NewRateLimitService(&requestLogStub{}, 0, nil)
	assert.NoError(t, limiter.Check(context.Background(), 7, time.Now()))
}

func TestMidnightOf(t *testing.T) {
	at := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), MidnightOf(at))
}

func TestPruneRemovesOldRows(t *testing.T) {
	repo := &requestLogStub{}
	limiter := NewRateLimitService(repo, 10, nil)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, limiter.Record(context.Background(), &models.RequestLog{UserID: 1, TimeCreated: now.AddDate(0, 0, -100).Unix()}))
	require.NoError(t, limiter.Record(context.Background(), &models.RequestLog{UserID: 1, TimeCreated: now.Unix()}))

	removed, err := limiter.Prune(context.Background(), now, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, repo.logs, 1)
}
