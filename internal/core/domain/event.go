package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventWalletCreated     EventType = "wallet.created"
	EventWalletUpdated     EventType = "wallet.updated"
	EventWalletRecharged   EventType = "wallet.recharged"
	EventWalletDebited     EventType = "wallet.debited"
	EventWalletTransferred EventType = "wallet.transferred"
)

// LedgerEvent is published after a unit of work commits.
type LedgerEvent struct {
	ID             uuid.UUID                 `json:"id"`
	Type           EventType                 `json:"type"`
	CentreID       int64                     `json:"centre_id"`
	ActorStaffID   *int64                    `json:"actor_staff_id,omitempty"`
	WalletIDs      []int64                   `json:"wallet_ids"`
	TransactionIDs []int64                   `json:"transaction_ids,omitempty"`
	Amount         *decimal.Decimal          `json:"amount,omitempty"`
	Balances       map[int64]decimal.Decimal `json:"balances,omitempty"`
	OccurredAt     time.Time                 `json:"occurred_at"`
}

// NewLedgerEvent creates an event with a fresh id.
func NewLedgerEvent(t EventType, centreID int64, actor *int64, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		ID:           uuid.New(),
		Type:         t,
		CentreID:     centreID,
		ActorStaffID: actor,
		Balances:     map[int64]decimal.Decimal{},
		OccurredAt:   at,
	}
}

// WithWallet records a touched wallet and its post-commit balance.
func (e *LedgerEvent) WithWallet(w *Wallet) *LedgerEvent {
	e.WalletIDs = append(e.WalletIDs, w.ID)
	e.Balances[w.ID] = w.Balance
	return e
}

// WithTransactions records the transactions produced by the operation.
func (e *LedgerEvent) WithTransactions(txs ...*Transaction) *LedgerEvent {
	for _, t := range txs {
		e.TransactionIDs = append(e.TransactionIDs, t.ID)
	}
	if len(txs) > 0 {
		amt := txs[0].Amount
		e.Amount = &amt
	}
	return e
}
