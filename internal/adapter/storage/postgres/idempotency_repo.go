package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct{}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo() *IdempotencyRepo {
	return &IdempotencyRepo{}
}

var _ ports.IdempotencyRepository = (*IdempotencyRepo)(nil)

// Create inserts an idempotency log within a database transaction. A key
// recorded concurrently by another transaction yields ports.ErrIdempotencyKeyExists.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	query := `INSERT INTO idempotency_logs (key, request_hash, response_json)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := tx.QueryRow(ctx, query, log.Key, log.RequestHash, log.ResponseJSON).Scan(&log.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return ports.ErrIdempotencyKeyExists
		}
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	return nil
}

// Get fetches an idempotency log by key.
func (r *IdempotencyRepo) Get(ctx context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error) {
	query := `SELECT key, request_hash, response_json, created_at FROM idempotency_logs WHERE key = $1`

	log := &domain.IdempotencyLog{}
	err := tx.QueryRow(ctx, query, key).Scan(&log.Key, &log.RequestHash, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return log, nil
}
