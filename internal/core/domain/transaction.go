package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether a transaction increases or decreases a balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Categories the engine writes itself. Callers may use any other tag.
const (
	CategoryOpeningBalance = "opening_balance"
	CategoryRecharge       = "recharge"
	CategoryTransfer       = "transfer"
)

// Transaction is an immutable record of one balance change on one wallet.
// Amount is always positive; Direction carries the sign.
type Transaction struct {
	ID                  int64           `json:"id"`
	WalletID            int64           `json:"wallet_id"`
	CentreID            int64           `json:"centre_id"`
	Direction           Direction       `json:"direction"`
	Amount              decimal.Decimal `json:"amount"`
	BalanceAfter        decimal.Decimal `json:"balance_after"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	StaffID             *int64          `json:"staff_id,omitempty"` // nil = system
	LinkedTransactionID *int64          `json:"linked_transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the direction applied.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsTransferLeg returns true if the transaction is one half of a transfer.
func (t *Transaction) IsTransferLeg() bool {
	return t.LinkedTransactionID != nil
}

// Before orders transactions by (created_at, id), the history order.
func (t *Transaction) Before(o *Transaction) bool {
	if t.CreatedAt.Equal(o.CreatedAt) {
		return t.ID < o.ID
	}
	return t.CreatedAt.Before(o.CreatedAt)
}

// FlowTotals aggregates credits and debits of one wallet over a period.
type FlowTotals struct {
	WalletID    int64           `json:"wallet_id"`
	Credits     decimal.Decimal `json:"credits"`
	Debits      decimal.Decimal `json:"debits"`
	CreditCount int64           `json:"credit_count"`
	DebitCount  int64           `json:"debit_count"`
}

// Net returns credits minus debits.
func (f FlowTotals) Net() decimal.Decimal {
	return f.Credits.Sub(f.Debits)
}

// Add folds one transaction into the totals.
func (f *FlowTotals) Add(t *Transaction) {
	switch t.Direction {
	case DirectionCredit:
		f.Credits = f.Credits.Add(t.Amount)
		f.CreditCount++
	case DirectionDebit:
		f.Debits = f.Debits.Add(t.Amount)
		f.DebitCount++
	}
}
