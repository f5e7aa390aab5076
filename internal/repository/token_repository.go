package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// TokenRepository resolves opaque API tokens to their owning user and company.
type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// FindByHash returns the token row for a hashed credential, or nil when no
// matching token exists.
func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.APIToken, error) {
	const query = `SELECT id, token_hash, userid, companyid, active, valid_until, created_at
FROM api_tokens WHERE token_hash = $1`
	var token models.APIToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &token, nil
}
