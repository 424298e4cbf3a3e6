package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casashop/cart-api/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, name, scopes FROM api_keys
		WHERE key_hash = $1 AND active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash, name = EXCLUDED.name,
			scopes = EXCLUDED.scopes, active = EXCLUDED.active`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
// Returns auth.ErrUnauthorized when no matching key exists.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKey, error) {
	rows, err := r.pool.Query(ctx, getAPIKeyByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding api key: %w", err)
	}

	key, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.APIKey, error) {
		var k auth.APIKey
		err := row.Scan(&k.ID, &k.KeyHash, &k.Name, &k.Scopes)
		return k, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding api key: %w", err)
	}
	return &key, nil
}

// Upsert writes an API key record. Used by the seeding tool.
func (r *APIKeyRepository) Upsert(ctx context.Context, key *auth.APIKey, active bool) error {
	_, err := r.pool.Exec(ctx, upsertAPIKeySQL, key.ID, key.KeyHash, key.Name, key.Scopes, active)
	if err != nil {
		return fmt.Errorf("upserting api key %q: %w", key.ID, err)
	}
	return nil
}
