package domain

import (
	"time"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletCreate AuditAction = "WALLET_CREATE"
	AuditActionWalletUpdate AuditAction = "WALLET_UPDATE"
	AuditActionRecharge     AuditAction = "RECHARGE"
	AuditActionDebit        AuditAction = "DEBIT"
	AuditActionTransfer     AuditAction = "TRANSFER"
)

// Audited entity types.
const (
	EntityWallet      = "wallet"
	EntityTransaction = "transaction"
)

// AuditEntry records who performed which ledger operation.
type AuditEntry struct {
	ID           int64       `json:"id"`
	CentreID     int64       `json:"centre_id"`
	ActorStaffID *int64      `json:"actor_staff_id,omitempty"` // nil = system
	Action       AuditAction `json:"action"`
	EntityType   string      `json:"entity_type"`
	EntityID     int64       `json:"entity_id"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}
