package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Append(t *testing.T) {
	mock, tx := newMockTx(t)
	staff := int64(9)
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &domain.AuditEntry{
		CentreID:     3,
		ActorStaffID: &staff,
		Action:       domain.AuditActionTransfer,
		EntityType:   domain.EntityTransaction,
		EntityID:     41,
		Details:      `{"amount":"10"}`,
	}

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(e.CentreID, e.ActorStaffID, "TRANSFER", e.EntityType, e.EntityID, e.Details).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

	require.NoError(t, NewAuditRepo().Append(context.Background(), tx, e))
	assert.Equal(t, int64(5), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List(t *testing.T) {
	mock, tx := newMockTx(t)
	centre := int64(3)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE centre_id = \$1`).
		WithArgs(centre).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT .+ FROM audit_logs WHERE centre_id = \$1 ORDER BY created_at, id LIMIT \$2 OFFSET \$3`).
		WithArgs(centre, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "centre_id", "actor_staff_id", "action", "entity_type", "entity_id", "details", "created_at"}).
			AddRow(int64(5), centre, (*int64)(nil), domain.AuditActionRecharge, domain.EntityTransaction, int64(12), `{}`, now))

	entries, total, err := NewAuditRepo().List(context.Background(), tx, ports.AuditListParams{CentreID: &centre, Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionRecharge, entries[0].Action)
	assert.Nil(t, entries[0].ActorStaffID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
