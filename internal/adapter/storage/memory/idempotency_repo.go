package memory

import (
	"context"
	"slices"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}

	existing, err := r.Get(ctx, tx, log.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		return ports.ErrIdempotencyKeyExists
	}

	log.CreatedAt = r.store.now()
	entry := *log
	entry.ResponseJSON = slices.Clone(log.ResponseJSON)
	t.idempotency = append(t.idempotency, entry)
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	for i := range t.idempotency {
		if t.idempotency[i].Key == key {
			l := t.idempotency[i]
			return &l, nil
		}
	}

	var (
		l  domain.IdempotencyLog
		ok bool
	)
	t.read(func() { l, ok = r.store.idempotency[key] })
	if !ok {
		return nil, nil
	}
	return &l, nil
}
