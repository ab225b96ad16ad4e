package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Every repository method runs inside a unit of work opened by DBTransactor.
// Mutations use a Begin transaction; reads that must agree with each other share
// one BeginSnapshot transaction.

// WalletRepository is the wallet store.
type WalletRepository interface {
	// Create inserts the wallet with a zero balance and assigns ID and timestamps.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	// Update persists non-monetary fields. The balance column is never written.
	Update(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	// GetByID returns nil, nil when the wallet does not exist.
	GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Wallet, error)
	List(ctx context.Context, tx pgx.Tx, filter WalletFilter) ([]domain.Wallet, error)
	// LockForUpdate row-locks the wallets in ascending id order and returns them keyed by id.
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Wallet, error)
	// ApplyDelta adds a signed amount to the balance and returns the new balance.
	// It fails with an insufficient-funds error instead of driving a
	// non-overdraft wallet below zero.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error)
}

// WalletFilter narrows wallet listings. Nil fields are not filtered on.
type WalletFilter struct {
	CentreID        *int64
	Status          *domain.WalletStatus
	Kind            *domain.WalletKind
	AssignedStaffID *int64
}

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	// ReserveIDs allocates n transaction ids so paired legs can reference each other.
	ReserveIDs(ctx context.Context, tx pgx.Tx, n int) ([]int64, error)
	// Append inserts a transaction. A zero ID is assigned by the store.
	Append(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// List returns one page ordered by (created_at, id) and the total match count.
	List(ctx context.Context, tx pgx.Tx, params TransactionListParams) ([]domain.Transaction, int64, error)
	// Totals aggregates credits and debits per wallet.
	Totals(ctx context.Context, tx pgx.Tx, params TotalsParams) ([]domain.FlowTotals, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID    *int64
	CentreID    *int64
	From        *time.Time // inclusive
	To          *time.Time // exclusive
	NewestFirst bool
	Page        int
	PageSize    int
}

// TotalsParams selects the transactions aggregated by Totals.
type TotalsParams struct {
	WalletID *int64
	CentreID *int64
	From     *time.Time
	To       *time.Time
}

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error
	// List returns entries in chronological order and the total match count.
	List(ctx context.Context, tx pgx.Tx, params AuditListParams) ([]domain.AuditEntry, int64, error)
}

// AuditListParams holds filter + pagination for the audit trail.
type AuditListParams struct {
	CentreID     *int64
	ActorStaffID *int64
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// ErrIdempotencyKeyExists is returned when a concurrent request recorded the same key first.
var ErrIdempotencyKeyExists = errors.New("idempotency key already recorded")

// IdempotencyRepository defines persistence for idempotency logs.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	// Get returns nil, nil when the key is unknown.
	Get(ctx context.Context, tx pgx.Tx, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	// Begin opens a read-write unit of work.
	Begin(ctx context.Context) (pgx.Tx, error)
	// BeginSnapshot opens a read-only transaction that observes a single commit point.
	BeginSnapshot(ctx context.Context) (pgx.Tx, error)
}
