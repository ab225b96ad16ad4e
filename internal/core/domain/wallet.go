package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// WalletKind is informational only; it never changes ledger behaviour.
type WalletKind string

const (
	WalletKindBank    WalletKind = "bank"
	WalletKindCash    WalletKind = "cash"
	WalletKindCard    WalletKind = "card"
	WalletKindDigital WalletKind = "digital"
	WalletKindSavings WalletKind = "savings"
)

// Valid reports whether k is a known wallet kind.
func (k WalletKind) Valid() bool {
	switch k {
	case WalletKindBank, WalletKindCash, WalletKindCard, WalletKindDigital, WalletKindSavings:
		return true
	}
	return false
}

// WalletOwnership tells whether a wallet belongs to one staff member or to the centre.
type WalletOwnership string

const (
	WalletOwnershipPersonal WalletOwnership = "personal"
	WalletOwnershipShared   WalletOwnership = "shared"
)

func (o WalletOwnership) Valid() bool {
	return o == WalletOwnershipPersonal || o == WalletOwnershipShared
}

// WalletStatus is the operational status. Offline wallets reject money movements.
type WalletStatus string

const (
	WalletStatusOnline  WalletStatus = "online"
	WalletStatusOffline WalletStatus = "offline"
)

func (s WalletStatus) Valid() bool {
	return s == WalletStatusOnline || s == WalletStatusOffline
}

var (
	ErrPersonalWalletNeedsStaff = errors.New("personal wallet requires an assigned staff id")
	ErrSharedWalletHasStaff     = errors.New("shared wallet cannot have an assigned staff id")
)

// Wallet is a balance-holding account scoped to a centre.
// Balance is only ever changed by the ledger engine through signed deltas.
type Wallet struct {
	ID              int64           `json:"id"`
	CentreID        int64           `json:"centre_id"`
	Name            string          `json:"name"`
	Kind            WalletKind      `json:"kind"`
	Ownership       WalletOwnership `json:"ownership"`
	AssignedStaffID *int64          `json:"assigned_staff_id,omitempty"`
	Status          WalletStatus    `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	AllowOverdraft  bool            `json:"allow_overdraft"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsOnline returns true if the wallet accepts money movements.
func (w *Wallet) IsOnline() bool {
	return w.Status == WalletStatusOnline
}

// CanCover returns true if debiting amount keeps the balance within policy.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.AllowOverdraft || w.Balance.GreaterThanOrEqual(amount)
}

// CheckOwnership validates the ownership / assigned staff pairing.
func (w *Wallet) CheckOwnership() error {
	switch w.Ownership {
	case WalletOwnershipPersonal:
		if w.AssignedStaffID == nil || *w.AssignedStaffID <= 0 {
			return ErrPersonalWalletNeedsStaff
		}
	case WalletOwnershipShared:
		if w.AssignedStaffID != nil {
			return ErrSharedWalletHasStaff
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	c.AssignedStaffID = cloneID(w.AssignedStaffID)
	c.CreatedBy = cloneID(w.CreatedBy)
	return &c
}

// LockOrder returns the distinct wallet ids in ascending order.
// Every component that locks more than one wallet acquires them in this order.
func LockOrder(ids ...int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
