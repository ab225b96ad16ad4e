package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller threaded through every ledger call.
// A zero StaffID denotes the system.
type Actor struct {
	StaffID  int64
	CentreID int64
}

// StaffRef returns the staff id as stored on records, nil for the system.
func (a Actor) StaffRef() *int64 {
	if a.StaffID == 0 {
		return nil
	}
	id := a.StaffID
	return &id
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(staffID, centreID int64) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	StaffID  int64
	CentreID int64
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// WalletLocker provides per-wallet mutual exclusion across callers.
type WalletLocker interface {
	// Acquire locks the wallets in ascending id order, waiting at most the
	// configured timeout. The returned release func unlocks them in reverse order.
	Acquire(ctx context.Context, walletIDs []int64) (release func(), err error)
}

// EventPublisher emits committed ledger changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the only writer of wallet balances.
type LedgerService interface {
	CreateWallet(ctx context.Context, actor Actor, req CreateWalletRequest) (*domain.Wallet, error)
	UpdateWallet(ctx context.Context, actor Actor, walletID int64, patch WalletPatch) (*domain.Wallet, error)
	Recharge(ctx context.Context, actor Actor, req MovementRequest) (*MovementResult, error)
	Debit(ctx context.Context, actor Actor, req MovementRequest) (*MovementResult, error)
	Transfer(ctx context.Context, actor Actor, req TransferRequest) (*TransferResult, error)
}

// CreateWalletRequest holds validated input for wallet creation.
type CreateWalletRequest struct {
	CentreID        int64 // 0 = caller's centre
	Name            string
	Kind            domain.WalletKind
	Ownership       domain.WalletOwnership
	AssignedStaffID *int64
	Status          domain.WalletStatus // empty = online
	InitialBalance  decimal.Decimal
	AllowOverdraft  bool
	IdempotencyKey  string
}

// WalletPatch changes non-monetary wallet fields. Nil fields are left untouched.
type WalletPatch struct {
	Name            *string
	Kind            *domain.WalletKind
	Status          *domain.WalletStatus
	Ownership       *domain.WalletOwnership
	AssignedStaffID *int64
	AllowOverdraft  *bool
}

// IsEmpty returns true if the patch changes nothing.
func (p WalletPatch) IsEmpty() bool {
	return p.Name == nil && p.Kind == nil && p.Status == nil &&
		p.Ownership == nil && p.AssignedStaffID == nil && p.AllowOverdraft == nil
}

// MovementRequest holds validated input for a recharge or debit.
type MovementRequest struct {
	WalletID       int64
	Amount         decimal.Decimal
	Category       string
	Description    string
	IdempotencyKey string
}

// MovementResult is the canonical post-commit state of a recharge or debit.
type MovementResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Wallet      *domain.Wallet      `json:"wallet"`
}

// TransferRequest holds validated input for a transfer.
type TransferRequest struct {
	FromWalletID   int64
	ToWalletID     int64
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// TransferResult is the canonical post-commit state of a transfer.
type TransferResult struct {
	Debit  *domain.Transaction `json:"debit"`
	Credit *domain.Transaction `json:"credit"`
	From   *domain.Wallet      `json:"from"`
	To     *domain.Wallet      `json:"to"`
}

// QueryService answers read-only questions from a single committed snapshot.
type QueryService interface {
	ListWallets(ctx context.Context, actor Actor, filter WalletFilter) ([]domain.Wallet, error)
	GetWallet(ctx context.Context, actor Actor, walletID int64) (*domain.Wallet, error)
	History(ctx context.Context, actor Actor, query HistoryQuery) (*HistoryPage, error)
	WalletSummary(ctx context.Context, actor Actor, walletID int64, period Period) (*WalletSummary, error)
	CentreSummary(ctx context.Context, actor Actor, period Period) (*CentreSummary, error)
	CentreActivity(ctx context.Context, actor Actor, query ActivityQuery) ([]domain.Transaction, int64, error)
	AuditLog(ctx context.Context, actor Actor, query AuditQuery) ([]domain.AuditEntry, int64, error)
	Reconcile(ctx context.Context, actor Actor, walletID int64) (*Reconciliation, error)
}

// Period is an optional [From, To) time range.
type Period struct {
	From *time.Time
	To   *time.Time
}

// HistoryQuery selects one page of a wallet's transactions.
type HistoryQuery struct {
	WalletID    int64
	Period      Period
	NewestFirst bool
	Page        int
	PageSize    int
}

// HistoryPage is a wallet and one page of its history read from the same snapshot.
type HistoryPage struct {
	Wallet   *domain.Wallet
	Items    []domain.Transaction
	Total    int64
	Page     int
	PageSize int
}

// ActivityQuery selects centre-wide transactions in a window.
type ActivityQuery struct {
	Period   Period
	Page     int
	PageSize int
}

// AuditQuery filters the audit trail.
type AuditQuery struct {
	CentreID     *int64
	ActorStaffID *int64
	Period       Period
	Page         int
	PageSize     int
}

// WalletSummary aggregates one wallet's flows over a period.
type WalletSummary struct {
	WalletID int64               `json:"wallet_id"`
	Name     string              `json:"name"`
	Status   domain.WalletStatus `json:"status"`
	Balance  decimal.Decimal     `json:"balance"`
	Totals   domain.FlowTotals   `json:"totals"`
}

// CentreSummary aggregates every wallet of a centre over a period.
type CentreSummary struct {
	CentreID     int64           `json:"centre_id"`
	WalletCount  int             `json:"wallet_count"`
	TotalBalance decimal.Decimal `json:"total_balance"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	Wallets      []WalletSummary `json:"wallets"`
}

// Reconciliation compares a stored balance with the sum of its transactions.
type Reconciliation struct {
	WalletID         int64           `json:"wallet_id"`
	StoredBalance    decimal.Decimal `json:"stored_balance"`
	ComputedBalance  decimal.Decimal `json:"computed_balance"`
	TransactionCount int64           `json:"transaction_count"`
	Consistent       bool            `json:"consistent"`
}
