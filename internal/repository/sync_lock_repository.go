package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SyncLockRepository implements an advisory lock as a named row in the
// sync_locks table. A lock held past its stale timeout can be taken over by
// another holder, so a crashed run never wedges the engine permanently.
type SyncLockRepository struct {
	db *sqlx.DB
}

func NewSyncLockRepository(db *sqlx.DB) *SyncLockRepository {
	return &SyncLockRepository{db: db}
}

// Acquire attempts to take the named lock. It succeeds when the lock is free
// or when the current holder acquired it longer than staleAfter ago.
func (r *SyncLockRepository) Acquire(ctx context.Context, name, holder string, now int64, staleAfter time.Duration) (bool, error) {
	const query = `INSERT INTO sync_locks (name, holder, acquired_at)
VALUES ($1, $2, $3)
ON CONFLICT (name)
DO UPDATE SET holder = EXCLUDED.holder, acquired_at = EXCLUDED.acquired_at
WHERE sync_locks.acquired_at < $4`
	staleCutoff := now - int64(staleAfter.Seconds())
	res, err := r.db.ExecContext(ctx, query, name, holder, now, staleCutoff)
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: rows affected: %w", err)
	}
	return n > 0, nil
}

// Release frees the lock, but only if we still hold it.
func (r *SyncLockRepository) Release(ctx context.Context, name, holder string) error {
	const query = `DELETE FROM sync_locks WHERE name = $1 AND holder = $2`
	if _, err := r.db.ExecContext(ctx, query, name, holder); err != nil {
		return fmt.Errorf("release sync lock: %w", err)
	}
	return nil
}
