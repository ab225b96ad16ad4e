package dto

import (
	"encoding/json"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Amounts and balances travel as decimal strings.

// CreateWalletRequest is the request body for POST /wallets.
type CreateWalletRequest struct {
	CentreID        int64  `json:"centre_id" binding:"omitempty,gt=0"`
	Name            string `json:"name" binding:"required,max=100"`
	Kind            string `json:"kind" binding:"required,wallet_kind"`
	Ownership       string `json:"ownership" binding:"required,wallet_ownership"`
	AssignedStaffID *int64 `json:"assigned_staff_id,omitempty" binding:"omitempty,gt=0"`
	Status          string `json:"status,omitempty" binding:"omitempty,wallet_status"`
	InitialBalance  string `json:"initial_balance,omitempty" binding:"omitempty,decimal_amount"`
	AllowOverdraft  bool   `json:"allow_overdraft"`
}

// UpdateWalletRequest is the request body for PATCH /wallets/:id.
// Omitted fields are left unchanged.
type UpdateWalletRequest struct {
	Name            *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Kind            *string `json:"kind,omitempty" binding:"omitempty,wallet_kind"`
	Status          *string `json:"status,omitempty" binding:"omitempty,wallet_status"`
	Ownership       *string `json:"ownership,omitempty" binding:"omitempty,wallet_ownership"`
	AssignedStaffID *int64  `json:"assigned_staff_id,omitempty" binding:"omitempty,gt=0"`
	AllowOverdraft  *bool   `json:"allow_overdraft,omitempty"`
}

// MovementRequest is the request body for recharge and debit.
type MovementRequest struct {
	Amount      string `json:"amount" binding:"required,decimal_amount"`
	Category    string `json:"category" binding:"max=64"`
	Description string `json:"description" binding:"max=500"`
}

// TransferRequest is the request body for POST /transfers.
type TransferRequest struct {
	FromWalletID int64  `json:"from_wallet_id" binding:"required,gt=0"`
	ToWalletID   int64  `json:"to_wallet_id" binding:"required,gt=0"`
	Amount       string `json:"amount" binding:"required,decimal_amount"`
	Description  string `json:"description" binding:"max=500"`
}

// WalletResponse is the wire form of a wallet.
type WalletResponse struct {
	ID              int64  `json:"id"`
	CentreID        int64  `json:"centre_id"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Ownership       string `json:"ownership"`
	AssignedStaffID *int64 `json:"assigned_staff_id,omitempty"`
	Status          string `json:"status"`
	Balance         string `json:"balance"`
	AllowOverdraft  bool   `json:"allow_overdraft"`
	CreatedBy       *int64 `json:"created_by,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// TransactionResponse is the wire form of a ledger transaction.
type TransactionResponse struct {
	ID                  int64  `json:"id"`
	WalletID            int64  `json:"wallet_id"`
	CentreID            int64  `json:"centre_id"`
	Direction           string `json:"direction"`
	Amount              string `json:"amount"`
	BalanceAfter        string `json:"balance_after"`
	Category            string `json:"category"`
	Description         string `json:"description"`
	StaffID             *int64 `json:"staff_id,omitempty"`
	LinkedTransactionID *int64 `json:"linked_transaction_id,omitempty"`
	CreatedAt           string `json:"created_at"`
}

// MovementResponse is returned by recharge and debit.
type MovementResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Wallet      WalletResponse      `json:"wallet"`
}

// TransferResponse is returned by POST /transfers.
type TransferResponse struct {
	Debit  TransactionResponse `json:"debit"`
	Credit TransactionResponse `json:"credit"`
	From   WalletResponse      `json:"from_wallet"`
	To     WalletResponse      `json:"to_wallet"`
}

// HistoryResponse is one page of a wallet's history next to the wallet as
// it was when the page was read.
type HistoryResponse struct {
	Wallet       WalletResponse        `json:"wallet"`
	Transactions []TransactionResponse `json:"transactions"`
}

// TotalsResponse is the wire form of credit/debit totals.
type TotalsResponse struct {
	Credits     string `json:"credits"`
	Debits      string `json:"debits"`
	Net         string `json:"net"`
	CreditCount int64  `json:"credit_count"`
	DebitCount  int64  `json:"debit_count"`
}

// WalletSummaryResponse is returned by GET /wallets/:id/summary.
type WalletSummaryResponse struct {
	WalletID int64          `json:"wallet_id"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Balance  string         `json:"balance"`
	Totals   TotalsResponse `json:"totals"`
	From     *string        `json:"from,omitempty"`
	To       *string        `json:"to,omitempty"`
}

// CentreSummaryResponse is returned by GET /reports/centre-summary.
type CentreSummaryResponse struct {
	CentreID     int64                   `json:"centre_id"`
	WalletCount  int                     `json:"wallet_count"`
	TotalBalance string                  `json:"total_balance"`
	TotalCredits string                  `json:"total_credits"`
	TotalDebits  string                  `json:"total_debits"`
	Wallets      []WalletSummaryResponse `json:"wallets"`
	From         *string                 `json:"from,omitempty"`
	To           *string                 `json:"to,omitempty"`
}

// ReconciliationResponse is returned by GET /wallets/:id/reconciliation.
type ReconciliationResponse struct {
	WalletID         int64  `json:"wallet_id"`
	StoredBalance    string `json:"stored_balance"`
	ComputedBalance  string `json:"computed_balance"`
	TransactionCount int64  `json:"transaction_count"`
	Consistent       bool   `json:"consistent"`
}

// AuditEntryResponse is the wire form of an audit record.
type AuditEntryResponse struct {
	ID           int64           `json:"id"`
	CentreID     int64           `json:"centre_id"`
	ActorStaffID *int64          `json:"actor_staff_id,omitempty"`
	Action       string          `json:"action"`
	EntityType   string          `json:"entity_type"`
	EntityID     int64           `json:"entity_id"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// View renders ledger values for the wire. Amounts carry exactly Scale
// fractional digits whatever precision the store returns.
type View struct {
	Scale int32
}

// Amount formats d with v.Scale fractional digits. A value with more digits
// than the scale is printed in full, never rounded.
func (v View) Amount(d decimal.Decimal) string {
	if !d.Equal(d.Truncate(v.Scale)) {
		return d.String()
	}
	return d.StringFixed(v.Scale)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatPeriod(p ports.Period) (from, to *string) {
	if p.From != nil {
		s := formatTime(*p.From)
		from = &s
	}
	if p.To != nil {
		s := formatTime(*p.To)
		to = &s
	}
	return from, to
}

// ToWallet converts a domain wallet.
func (v View) ToWallet(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:              w.ID,
		CentreID:        w.CentreID,
		Name:            w.Name,
		Kind:            string(w.Kind),
		Ownership:       string(w.Ownership),
		AssignedStaffID: w.AssignedStaffID,
		Status:          string(w.Status),
		Balance:         v.Amount(w.Balance),
		AllowOverdraft:  w.AllowOverdraft,
		CreatedBy:       w.CreatedBy,
		CreatedAt:       formatTime(w.CreatedAt),
		UpdatedAt:       formatTime(w.UpdatedAt),
	}
}

// ToWallets converts a listing.
func (v View) ToWallets(ws []domain.Wallet) []WalletResponse {
	out := make([]WalletResponse, 0, len(ws))
	for i := range ws {
		out = append(out, v.ToWallet(&ws[i]))
	}
	return out
}

// ToTransaction converts a domain transaction.
func (v View) ToTransaction(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                  t.ID,
		WalletID:            t.WalletID,
		CentreID:            t.CentreID,
		Direction:           string(t.Direction),
		Amount:              v.Amount(t.Amount),
		BalanceAfter:        v.Amount(t.BalanceAfter),
		Category:            t.Category,
		Description:         t.Description,
		StaffID:             t.StaffID,
		LinkedTransactionID: t.LinkedTransactionID,
		CreatedAt:           formatTime(t.CreatedAt),
	}
}

// ToTransactions converts a page of transactions.
func (v View) ToTransactions(txs []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, v.ToTransaction(&txs[i]))
	}
	return out
}

func (v View) ToMovement(r *ports.MovementResult) MovementResponse {
	return MovementResponse{
		Transaction: v.ToTransaction(r.Transaction),
		Wallet:      v.ToWallet(r.Wallet),
	}
}

func (v View) ToTransfer(r *ports.TransferResult) TransferResponse {
	return TransferResponse{
		Debit:  v.ToTransaction(r.Debit),
		Credit: v.ToTransaction(r.Credit),
		From:   v.ToWallet(r.From),
		To:     v.ToWallet(r.To),
	}
}

func (v View) ToHistory(p *ports.HistoryPage) HistoryResponse {
	return HistoryResponse{
		Wallet:       v.ToWallet(p.Wallet),
		Transactions: v.ToTransactions(p.Items),
	}
}

func (v View) totals(f domain.FlowTotals) TotalsResponse {
	return TotalsResponse{
		Credits:     v.Amount(f.Credits),
		Debits:      v.Amount(f.Debits),
		Net:         v.Amount(f.Net()),
		CreditCount: f.CreditCount,
		DebitCount:  f.DebitCount,
	}
}

// ToWalletSummary converts a wallet summary over period.
func (v View) ToWalletSummary(s *ports.WalletSummary, period ports.Period) WalletSummaryResponse {
	out := WalletSummaryResponse{
		WalletID: s.WalletID,
		Name:     s.Name,
		Status:   string(s.Status),
		Balance:  v.Amount(s.Balance),
		Totals:   v.totals(s.Totals),
	}
	out.From, out.To = formatPeriod(period)
	return out
}

// ToCentreSummary converts a centre summary over period.
func (v View) ToCentreSummary(s *ports.CentreSummary, period ports.Period) CentreSummaryResponse {
	out := CentreSummaryResponse{
		CentreID:     s.CentreID,
		WalletCount:  s.WalletCount,
		TotalBalance: v.Amount(s.TotalBalance),
		TotalCredits: v.Amount(s.TotalCredits),
		TotalDebits:  v.Amount(s.TotalDebits),
		Wallets:      make([]WalletSummaryResponse, 0, len(s.Wallets)),
	}
	for i := range s.Wallets {
		out.Wallets = append(out.Wallets, v.ToWalletSummary(&s.Wallets[i], ports.Period{}))
	}
	out.From, out.To = formatPeriod(period)
	return out
}

func (v View) ToReconciliation(r *ports.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		WalletID:         r.WalletID,
		StoredBalance:    v.Amount(r.StoredBalance),
		ComputedBalance:  v.Amount(r.ComputedBalance),
		TransactionCount: r.TransactionCount,
		Consistent:       r.Consistent,
	}
}

// ToAuditEntries converts audit records. Details are passed through as JSON.
func ToAuditEntries(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		r := AuditEntryResponse{
			ID:           e.ID,
			CentreID:     e.CentreID,
			ActorStaffID: e.ActorStaffID,
			Action:       string(e.Action),
			EntityType:   e.EntityType,
			EntityID:     e.EntityID,
			CreatedAt:    formatTime(e.CreatedAt),
		}
		if e.Details != "" && json.Valid([]byte(e.Details)) {
			r.Details = json.RawMessage(e.Details)
		}
		out = append(out, r)
	}
	return out
}
