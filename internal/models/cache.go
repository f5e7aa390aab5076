package models

import "encoding/json"

// CacheEntry is one durable response-cache row per (cache_key, companyid).
// Expiry is absolute; entries past ExpiresAt are deleted lazily on lookup and
// in bulk by the periodic sweep. HitCount and LastAccessed exist for
// observability only and never affect eviction order.
type CacheEntry struct {
	ID             int64           `db:"id" json:"id"`
	CacheKey       string          `db:"cache_key" json:"cache_key"`
	CompanyID      int64           `db:"companyid" json:"companyid"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	CacheTimestamp int64           `db:"cache_timestamp" json:"cache_timestamp"`
	ExpiresAt      int64           `db:"expires_at" json:"expires_at"`
	HitCount       int64           `db:"hit_count" json:"hit_count"`
	LastAccessed   int64           `db:"last_accessed" json:"last_accessed"`
}
