package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRepo_ReserveIDs(t *testing.T) {
	mock, tx := newMockTx(t)

	mock.ExpectQuery("SELECT nextval.+generate_series").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"nextval"}).AddRow(int64(42)).AddRow(int64(41)))

	ids, err := NewTransactionRepo().ReserveIDs(context.Background(), tx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{41, 42}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Append_WithReservedID(t *testing.T) {
	mock, tx := newMockTx(t)
	linked := int64(42)
	staff := int64(9)
	tr := &domain.Transaction{
		ID:                  41,
		WalletID:            1,
		CentreID:            3,
		Direction:           domain.DirectionDebit,
		Amount:              decimal.RequireFromString("10.00"),
		BalanceAfter:        decimal.RequireFromString("90.00"),
		Category:            domain.CategoryTransfer,
		StaffID:             &staff,
		LinkedTransactionID: &linked,
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("INSERT INTO wallet_transactions .+ RETURNING created_at").
		WithArgs(tr.WalletID, tr.CentreID, tr.Direction, tr.Amount, tr.BalanceAfter,
			tr.Category, tr.Description, tr.StaffID, tr.LinkedTransactionID, tr.ID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, NewTransactionRepo().Append(context.Background(), tx, tr))
	assert.Equal(t, now, tr.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Append_AssignsID(t *testing.T) {
	mock, tx := newMockTx(t)
	tr := &domain.Transaction{
		WalletID:     1,
		CentreID:     3,
		Direction:    domain.DirectionCredit,
		Amount:       decimal.NewFromInt(5),
		BalanceAfter: decimal.NewFromInt(5),
		Category:     domain.CategoryRecharge,
	}

	mock.ExpectQuery("INSERT INTO wallet_transactions .+ RETURNING id, created_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), time.Now()))

	require.NoError(t, NewTransactionRepo().Append(context.Background(), tx, tr))
	assert.Equal(t, int64(77), tr.ID)
}

func TestTransactionRepo_List(t *testing.T) {
	mock, tx := newMockTx(t)
	walletID := int64(1)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM wallet_transactions WHERE wallet_id = \$1 AND created_at >= \$2`).
		WithArgs(walletID, from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT .+ FROM wallet_transactions WHERE .+ ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(walletID, from, 2, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "wallet_id", "centre_id", "direction", "amount", "balance_after",
			"category", "description", "staff_id", "linked_transaction_id", "created_at"}).
			AddRow(int64(1), walletID, int64(3), domain.DirectionCredit, decimal.NewFromInt(50), decimal.NewFromInt(50),
				domain.CategoryOpeningBalance, "Opening balance", (*int64)(nil), (*int64)(nil), now))

	items, total, err := NewTransactionRepo().List(context.Background(), tx, ports.TransactionListParams{
		WalletID:    &walletID,
		From:        &from,
		NewestFirst: true,
		Page:        2,
		PageSize:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, domain.CategoryOpeningBalance, items[0].Category)
	assert.Nil(t, items[0].StaffID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Totals(t *testing.T) {
	mock, tx := newMockTx(t)
	centre := int64(3)

	mock.ExpectQuery(`SELECT wallet_id,.+FROM wallet_transactions WHERE centre_id = \$1\s+GROUP BY wallet_id`).
		WithArgs(centre).
		WillReturnRows(pgxmock.NewRows([]string{"wallet_id", "credits", "debits", "credit_count", "debit_count"}).
			AddRow(int64(1), decimal.NewFromInt(150), decimal.NewFromInt(40), int64(2), int64(1)).
			AddRow(int64(2), decimal.NewFromInt(40), decimal.Zero, int64(1), int64(0)))

	totals, err := NewTransactionRepo().Totals(context.Background(), tx, ports.TotalsParams{CentreID: &centre})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.True(t, decimal.NewFromInt(110).Equal(totals[0].Net()))
	assert.Equal(t, int64(1), totals[1].CreditCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
