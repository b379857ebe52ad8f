package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpggio/weekly/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens in Postgres.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository constructs an APIKeyRepository.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// Add registers token for userID.
func (r *APIKeyRepository) Add(ctx context.Context, token, userID, description string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (key_hash, user_id, description) VALUES ($1,$2,$3)`,
		hashToken(token), userID, description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("add api key: %w", err)
	}
	return nil
}

// ResolveUser returns the owner of token and records its use.
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx,
		`UPDATE api_keys SET last_used=now() WHERE key_hash=$1 RETURNING user_id`,
		hashToken(token)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve api key: %w", err)
	}
	return userID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
