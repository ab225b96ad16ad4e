package service

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AuditTrail writes audit entries inside the caller's unit of work, so an
// operation and its audit record commit or roll back together.
type AuditTrail struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditTrail creates a new AuditTrail.
func NewAuditTrail(repo ports.AuditRepository, log zerolog.Logger) *AuditTrail {
	return &AuditTrail{repo: repo, log: log}
}

// Record appends one entry. details is serialized to JSON.
func (a *AuditTrail) Record(
	ctx context.Context,
	tx pgx.Tx,
	actor ports.Actor,
	action domain.AuditAction,
	entityType string,
	entityID int64,
	details map[string]any,
) (*domain.AuditEntry, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}

	entry := &domain.AuditEntry{
		CentreID:     actor.CentreID,
		ActorStaffID: actor.StaffRef(),
		Action:       action,
		EntityType:   entityType,
		EntityID:     entityID,
		Details:      string(raw),
	}
	if err := a.repo.Append(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	a.log.Debug().
		Str("action", string(action)).
		Str("entity_type", entityType).
		Int64("entity_id", entityID).
		Int64("centre_id", actor.CentreID).
		Int64("staff_id", actor.StaffID).
		Msg("audit entry staged")
	return entry, nil
}
