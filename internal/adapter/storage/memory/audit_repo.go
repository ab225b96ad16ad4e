package memory

import (
	"context"
	"slices"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}

	e.ID = r.store.auditSeq.Add(1)
	e.CreatedAt = r.store.now()
	t.audit = append(t.audit, *e)
	return nil
}

func (r *AuditRepo) List(ctx context.Context, tx pgx.Tx, params ports.AuditListParams) ([]domain.AuditEntry, int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, 0, err
	}

	var matched []domain.AuditEntry
	t.read(func() {
		for _, e := range r.store.audit {
			if params.CentreID != nil && e.CentreID != *params.CentreID {
				continue
			}
			if params.ActorStaffID != nil && (e.ActorStaffID == nil || *e.ActorStaffID != *params.ActorStaffID) {
				continue
			}
			if !inPeriod(e.CreatedAt, params.From, params.To) {
				continue
			}
			matched = append(matched, e)
		}
	})

	slices.SortStableFunc(matched, func(a, b domain.AuditEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	lo, hi := pageBounds(len(matched), params.Page, params.PageSize)
	return slices.Clone(matched[lo:hi]), int64(len(matched)), nil
}
