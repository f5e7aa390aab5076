package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheServiceDisabledAlwaysMisses(t *testing.T) {
	repo := &cacheRepoStub{entries: map[string]json.RawMessage{"k": json.RawMessage(`[]`)}}
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	_, hit := svc.Get(context.Background(), "k", 42, time.Now().Unix())
	assert.False(t, hit)
	assert.False(t, svc.Enabled())

	// Writes and invalidations are silent no-ops when disabled.
	svc.Set(context.Background(), "k2", 42, json.RawMessage(`[]`), time.Now().Unix(), time.Minute)
	assert.NotContains(t, repo.entries, "k2")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &cacheRepoStub{}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	now := time.Now().Unix()

	_, hit := svc.Get(context.Background(), "rows", 42, now)
	assert.False(t, hit)

	svc.Set(context.Background(), "rows", 42, json.RawMessage(`[{"userid":1}]`), now, 0)
	payload, hit := svc.Get(context.Background(), "rows", 42, now)
	assert.True(t, hit)
	assert.JSONEq(t, `[{"userid":1}]`, string(payload))
}

func TestCacheServiceInvalidateCompany(t *testing.T) {
	repo := &cacheRepoStub{}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	now := time.Now().Unix()

	svc.Set(context.Background(), "a", 42, json.RawMessage(`[]`), now, time.Minute)
	svc.InvalidateCompany(context.Background(), 42)

	_, hit := svc.Get(context.Background(), "a", 42, now)
	assert.False(t, hit)
}
