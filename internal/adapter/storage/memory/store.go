// Package memory is an in-process implementation of the ledger storage ports.
//
// Transactions live in an append-only arena indexed by wallet and by centre.
// Writes are staged on a Tx and applied atomically on Commit; a snapshot Tx holds
// the store's read lock for its whole lifetime, so every read through it observes
// the same commit point.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	errForeignTx = errors.New("memory: transaction was not opened by this store")
	errReadOnly  = errors.New("memory: write in read-only transaction")
)

// Store holds committed ledger state.
type Store struct {
	mu sync.RWMutex

	wallets     map[int64]*domain.Wallet
	txs         []domain.Transaction
	byWallet    map[int64][]int
	byCentre    map[int64][]int
	audit       []domain.AuditEntry
	idempotency map[string]domain.IdempotencyLog

	walletSeq atomic.Int64
	txSeq     atomic.Int64
	auditSeq  atomic.Int64

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:     make(map[int64]*domain.Wallet),
		byWallet:    make(map[int64][]int),
		byCentre:    make(map[int64][]int),
		idempotency: make(map[string]domain.IdempotencyLog),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Begin opens a read-write unit of work.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: s, changes: make(map[int64]*walletChange)}, nil
}

// BeginSnapshot opens a read-only transaction pinned to the current commit point.
func (s *Store) BeginSnapshot(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	return &Tx{store: s, readOnly: true}, nil
}

var _ ports.DBTransactor = (*Store)(nil)

// walletChange is the staged effect of one Tx on one wallet.
type walletChange struct {
	created bool
	wallet  *domain.Wallet // full row when created, otherwise the non-monetary fields
	fields  bool
	delta   decimal.Decimal
}

// Tx is a unit of work over a Store. Methods not listed here are not supported.
type Tx struct {
	pgx.Tx

	store    *Store
	readOnly bool
	closed   bool

	changes     map[int64]*walletChange
	order       []int64
	txs         []domain.Transaction
	audit       []domain.AuditEntry
	idempotency []domain.IdempotencyLog
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	if t.readOnly {
		t.store.mu.RUnlock()
		return nil
	}
	return t.store.apply(t)
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	if t.readOnly {
		t.store.mu.RUnlock()
	}
	return nil
}

// read runs fn with a consistent view of committed state.
func (t *Tx) read(fn func()) {
	if t.readOnly {
		fn()
		return
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	fn()
}

func (t *Tx) writable() error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *Tx) change(id int64) *walletChange {
	ch, ok := t.changes[id]
	if !ok {
		ch = &walletChange{}
		t.changes[id] = ch
		t.order = append(t.order, id)
	}
	return ch
}

// wallet returns the wallet as this Tx sees it: committed row plus staged changes.
func (t *Tx) wallet(id int64) *domain.Wallet {
	if ch := t.changes[id]; ch != nil && ch.created {
		return ch.wallet.Clone()
	}
	var w *domain.Wallet
	t.read(func() { w = t.store.wallets[id].Clone() })
	if w == nil {
		return nil
	}
	if ch := t.changes[id]; ch != nil {
		if ch.fields {
			copyFields(w, ch.wallet)
		}
		w.Balance = w.Balance.Add(ch.delta)
	}
	return w
}

// apply validates and publishes a write Tx under the store's write lock.
func (s *Store) apply(t *Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range t.idempotency {
		if _, exists := s.idempotency[l.Key]; exists {
			return ports.ErrIdempotencyKeyExists
		}
	}

	next := make(map[int64]*domain.Wallet, len(t.order))
	for _, id := range t.order {
		ch := t.changes[id]
		var w *domain.Wallet
		if ch.created {
			w = ch.wallet.Clone()
		} else {
			w = s.wallets[id].Clone()
			if w == nil {
				return fmt.Errorf("memory: wallet %d vanished", id)
			}
			if ch.fields {
				copyFields(w, ch.wallet)
			}
			w.Balance = w.Balance.Add(ch.delta)
		}
		if !w.AllowOverdraft && w.Balance.IsNegative() {
			return fmt.Errorf("memory: wallet %d balance floor violated", id)
		}
		next[id] = w
	}

	for id, w := range next {
		s.wallets[id] = w
	}
	for _, tr := range t.txs {
		pos := len(s.txs)
		s.txs = append(s.txs, tr)
		s.byWallet[tr.WalletID] = append(s.byWallet[tr.WalletID], pos)
		s.byCentre[tr.CentreID] = append(s.byCentre[tr.CentreID], pos)
	}
	s.audit = append(s.audit, t.audit...)
	for _, l := range t.idempotency {
		s.idempotency[l.Key] = l
	}
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errForeignTx
	}
	return t, nil
}

// copyFields copies every non-monetary column.
func copyFields(dst, src *domain.Wallet) {
	dst.Name = src.Name
	dst.Kind = src.Kind
	dst.Ownership = src.Ownership
	dst.AssignedStaffID = src.Clone().AssignedStaffID
	dst.Status = src.Status
	dst.AllowOverdraft = src.AllowOverdraft
	dst.UpdatedAt = src.UpdatedAt
}

// pageBounds returns the slice bounds of one page. A non-positive size means everything.
func pageBounds(total, page, size int) (int, int) {
	if size <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	lo := (page - 1) * size
	if lo > total {
		return total, total
	}
	hi := lo + size
	if hi > total {
		hi = total
	}
	return lo, hi
}

func inPeriod(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && !at.Before(*to) {
		return false
	}
	return true
}
