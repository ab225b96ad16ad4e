package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository over the append-only audit_logs table.
type AuditRepo struct{}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

var _ ports.AuditRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error {
	details := e.Details
	if details == "" {
		details = "{}"
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO audit_logs (centre_id, actor_staff_id, action, entity_type, entity_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.CentreID, e.ActorStaffID, string(e.Action), e.EntityType, e.EntityID, details,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, tx pgx.Tx, params ports.AuditListParams) ([]domain.AuditEntry, int64, error) {
	var b whereBuilder
	if params.CentreID != nil {
		b.add("centre_id = $%d", *params.CentreID)
	}
	if params.ActorStaffID != nil {
		b.add("actor_staff_id = $%d", *params.ActorStaffID)
	}
	if params.From != nil {
		b.add("created_at >= $%d", *params.From)
	}
	if params.To != nil {
		b.add("created_at < $%d", *params.To)
	}
	where := b.sql()

	var total int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := `SELECT id, centre_id, actor_staff_id, action, entity_type, entity_id, details::text, created_at
		FROM audit_logs ` + where + ` ORDER BY created_at, id` + b.page(params.Page, params.PageSize)
	rows, err := tx.Query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.CentreID, &e.ActorStaffID, &e.Action, &e.EntityType,
			&e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, total, nil
}
