package memory

import (
	"context"
	"slices"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}

	now := r.store.now()
	w.ID = r.store.walletSeq.Add(1)
	w.Balance = decimal.Zero
	w.CreatedAt = now
	w.UpdatedAt = now

	ch := t.change(w.ID)
	ch.created = true
	ch.wallet = w.Clone()
	return nil
}

func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	if t.wallet(w.ID) == nil {
		return pgx.ErrNoRows
	}

	w.UpdatedAt = r.store.now()
	ch := t.change(w.ID)
	if ch.created {
		copyFields(ch.wallet, w)
		return nil
	}
	ch.fields = true
	ch.wallet = w.Clone()
	return nil
}

func (r *WalletRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	return t.wallet(id), nil
}

func (r *WalletRepo) List(ctx context.Context, tx pgx.Tx, filter ports.WalletFilter) ([]domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	t.read(func() {
		for id := range r.store.wallets {
			ids = append(ids, id)
		}
	})
	for id, ch := range t.changes {
		if ch.created {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	wallets := make([]domain.Wallet, 0, len(ids))
	for _, id := range ids {
		w := t.wallet(id)
		if w == nil || !matches(w, filter) {
			continue
		}
		wallets = append(wallets, *w)
	}
	return wallets, nil
}

// LockForUpdate reads the wallets in ascending id order. Mutual exclusion
// between units of work is provided by the wallet locker.
func (r *WalletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.writable(); err != nil {
		return nil, err
	}

	out := make(map[int64]*domain.Wallet, len(ids))
	for _, id := range domain.LockOrder(ids...) {
		if w := t.wallet(id); w != nil {
			out[id] = w
		}
	}
	return out, nil
}

func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	t, err := asTx(tx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := t.writable(); err != nil {
		return decimal.Zero, err
	}

	w := t.wallet(id)
	if w == nil {
		return decimal.Zero, pgx.ErrNoRows
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() && !w.AllowOverdraft {
		return decimal.Zero, apperror.ErrInsufficientFunds()
	}

	ch := t.change(id)
	if ch.created {
		ch.wallet.Balance = next
	} else {
		ch.delta = ch.delta.Add(delta)
	}
	return next, nil
}

func matches(w *domain.Wallet, f ports.WalletFilter) bool {
	if f.CentreID != nil && w.CentreID != *f.CentreID {
		return false
	}
	if f.Status != nil && w.Status != *f.Status {
		return false
	}
	if f.Kind != nil && w.Kind != *f.Kind {
		return false
	}
	if f.AssignedStaffID != nil && (w.AssignedStaffID == nil || *w.AssignedStaffID != *f.AssignedStaffID) {
		return false
	}
	return true
}
