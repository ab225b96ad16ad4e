package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
// Reads only observe committed transactions.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

func (r *TransactionRepo) ReserveIDs(ctx context.Context, tx pgx.Tx, n int) ([]int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.writable(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("reserve transaction ids: invalid count %d", n)
	}

	last := r.store.txSeq.Add(int64(n))
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = last - int64(n-1-i)
	}
	return ids, nil
}

func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, tr *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	if !tr.Amount.IsPositive() {
		return fmt.Errorf("append transaction: non-positive amount %s", tr.Amount)
	}

	if tr.ID == 0 {
		tr.ID = r.store.txSeq.Add(1)
	}
	tr.CreatedAt = r.store.now()
	t.txs = append(t.txs, *tr)
	return nil
}

func (r *TransactionRepo) List(ctx context.Context, tx pgx.Tx, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, 0, err
	}

	var matched []domain.Transaction
	t.read(func() {
		matched = r.selectLocked(params.WalletID, params.CentreID, params.From, params.To)
	})

	slices.SortStableFunc(matched, func(a, b domain.Transaction) int {
		if a.Before(&b) {
			return -1
		}
		if b.Before(&a) {
			return 1
		}
		return 0
	})
	if params.NewestFirst {
		slices.Reverse(matched)
	}

	lo, hi := pageBounds(len(matched), params.Page, params.PageSize)
	return slices.Clone(matched[lo:hi]), int64(len(matched)), nil
}

func (r *TransactionRepo) Totals(ctx context.Context, tx pgx.Tx, params ports.TotalsParams) ([]domain.FlowTotals, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	var matched []domain.Transaction
	t.read(func() {
		matched = r.selectLocked(params.WalletID, params.CentreID, params.From, params.To)
	})

	byWallet := make(map[int64]*domain.FlowTotals)
	for i := range matched {
		tr := &matched[i]
		ft, ok := byWallet[tr.WalletID]
		if !ok {
			ft = &domain.FlowTotals{WalletID: tr.WalletID}
			byWallet[tr.WalletID] = ft
		}
		ft.Add(tr)
	}

	out := make([]domain.FlowTotals, 0, len(byWallet))
	for _, ft := range byWallet {
		out = append(out, *ft)
	}
	slices.SortFunc(out, func(a, b domain.FlowTotals) int {
		return cmp.Compare(a.WalletID, b.WalletID)
	})
	return out, nil
}

// selectLocked walks the narrowest index. Caller holds the read lock.
func (r *TransactionRepo) selectLocked(walletID, centreID *int64, from, to *time.Time) []domain.Transaction {
	var positions []int
	switch {
	case walletID != nil:
		positions = r.store.byWallet[*walletID]
	case centreID != nil:
		positions = r.store.byCentre[*centreID]
	default:
		positions = make([]int, len(r.store.txs))
		for i := range positions {
			positions[i] = i
		}
	}

	out := make([]domain.Transaction, 0, len(positions))
	for _, pos := range positions {
		tr := r.store.txs[pos]
		if centreID != nil && tr.CentreID != *centreID {
			continue
		}
		if !inPeriod(tr.CreatedAt, from, to) {
			continue
		}
		out = append(out, tr)
	}
	return out
}
