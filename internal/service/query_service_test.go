package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type queryTestDeps struct {
	svc        ports.QueryService
	wallets    *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	auditRepo  *mocks.MockAuditRepository
	transactor *mocks.MockDBTransactor
	tx         *mockTx
}

func setupQueryService(t *testing.T) *queryTestDeps {
	ctrl := gomock.NewController(t)
	d := &queryTestDeps{
		wallets:    mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		auditRepo:  mocks.NewMockAuditRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		tx:         &mockTx{},
	}
	d.svc = NewQueryService(d.wallets, d.txRepo, d.auditRepo, d.transactor, Paging{DefaultSize: 20, MaxSize: 100}, zerolog.Nop())
	return d
}

func (d *queryTestDeps) expectSnapshot() {
	d.transactor.EXPECT().BeginSnapshot(gomock.Any()).Return(d.tx, nil)
}

func centreWallet(id int64, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:       id,
		CentreID: frontDesk.CentreID,
		Name:     "Till",
		Status:   domain.WalletStatusOnline,
		Balance:  amount(balance),
	}
}

func TestQueryService_GetWallet(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(5)).Return(centreWallet(5, "12.50"), nil)

	w, err := d.svc.GetWallet(context.Background(), frontDesk, 5)
	require.NoError(t, err)
	assertAmount(t, "12.5", w.Balance)
}

func TestQueryService_GetWallet_NotFound(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(5)).Return(nil, nil)

	_, err := d.svc.GetWallet(context.Background(), frontDesk, 5)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestQueryService_GetWallet_OtherCentre(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(5)).Return(centreWallet(5, "1"), nil)

	_, err := d.svc.GetWallet(context.Background(), otherDesk, 5)
	assert.Equal(t, apperror.CodeUnauthorizedScope, apperror.CodeOf(err))
}

func TestQueryService_GetWallet_StorageError(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(5)).Return(nil, errors.New("db down"))

	_, err := d.svc.GetWallet(context.Background(), frontDesk, 5)
	assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(err))
}

func TestQueryService_ListWallets_DefaultsToCallerCentre(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	offline := domain.WalletStatusOffline
	d.wallets.EXPECT().
		List(gomock.Any(), d.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, f ports.WalletFilter) ([]domain.Wallet, error) {
			require.NotNil(t, f.CentreID)
			assert.Equal(t, frontDesk.CentreID, *f.CentreID)
			assert.Equal(t, &offline, f.Status)
			return []domain.Wallet{*centreWallet(1, "0")}, nil
		})

	wallets, err := d.svc.ListWallets(context.Background(), frontDesk, ports.WalletFilter{Status: &offline})
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestQueryService_ListWallets_ForeignCentre(t *testing.T) {
	d := setupQueryService(t)
	other := int64(99)

	_, err := d.svc.ListWallets(context.Background(), frontDesk, ports.WalletFilter{CentreID: &other})
	assert.Equal(t, apperror.CodeUnauthorizedScope, apperror.CodeOf(err))
}

func TestQueryService_History_ClampsPageSize(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(3)).Return(centreWallet(3, "10"), nil)
	d.txRepo.EXPECT().
		List(gomock.Any(), d.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, int64(3), *p.WalletID)
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, 100, p.PageSize)
			assert.True(t, p.NewestFirst)
			return []domain.Transaction{{ID: 9, WalletID: 3}}, 41, nil
		})

	page, err := d.svc.History(context.Background(), frontDesk, ports.HistoryQuery{WalletID: 3, PageSize: 5000, NewestFirst: true})
	require.NoError(t, err)
	assert.Equal(t, int64(41), page.Total)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, int64(3), page.Wallet.ID)
	assert.Len(t, page.Items, 1)
}

func TestQueryService_History_InvalidPeriod(t *testing.T) {
	d := setupQueryService(t)
	from := time.Now()
	to := from.Add(-time.Hour)

	_, err := d.svc.History(context.Background(), frontDesk, ports.HistoryQuery{WalletID: 1, Period: ports.Period{From: &from, To: &to}})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestQueryService_CentreSummary(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().List(gomock.Any(), d.tx, gomock.Any()).Return([]domain.Wallet{
		*centreWallet(1, "100"),
		*centreWallet(2, "-5"),
		*centreWallet(3, "0"),
	}, nil)
	d.txRepo.EXPECT().Totals(gomock.Any(), d.tx, gomock.Any()).Return([]domain.FlowTotals{
		{WalletID: 1, Credits: amount("150"), Debits: amount("50"), CreditCount: 2, DebitCount: 1},
		{WalletID: 2, Credits: amount("0"), Debits: amount("5"), DebitCount: 1},
	}, nil)

	sum, err := d.svc.CentreSummary(context.Background(), frontDesk, ports.Period{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.WalletCount)
	assertAmount(t, "95", sum.TotalBalance)
	assertAmount(t, "150", sum.TotalCredits)
	assertAmount(t, "55", sum.TotalDebits)
	require.Len(t, sum.Wallets, 3)
	assert.True(t, sum.Wallets[2].Totals.Credits.IsZero(), "wallets without activity report zero totals")
}

func TestQueryService_WalletSummary(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(1)).Return(centreWallet(1, "70"), nil)
	d.txRepo.EXPECT().Totals(gomock.Any(), d.tx, gomock.Any()).Return([]domain.FlowTotals{
		{WalletID: 1, Credits: amount("100"), Debits: amount("30"), CreditCount: 1, DebitCount: 3},
	}, nil)

	sum, err := d.svc.WalletSummary(context.Background(), frontDesk, 1, ports.Period{})
	require.NoError(t, err)
	assertAmount(t, "70", sum.Totals.Net())
	assert.Equal(t, int64(3), sum.Totals.DebitCount)
}

func TestQueryService_Reconcile_DetectsDrift(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.wallets.EXPECT().GetByID(gomock.Any(), d.tx, int64(1)).Return(centreWallet(1, "70"), nil)
	d.txRepo.EXPECT().Totals(gomock.Any(), d.tx, gomock.Any()).Return([]domain.FlowTotals{
		{WalletID: 1, Credits: amount("100"), Debits: amount("40"), CreditCount: 1, DebitCount: 1},
	}, nil)

	rec, err := d.svc.Reconcile(context.Background(), frontDesk, 1)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assertAmount(t, "60", rec.ComputedBalance)
	assert.Equal(t, int64(2), rec.TransactionCount)
}

func TestQueryService_AuditLog_ScopesToCentre(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	staff := int64(10)
	d.auditRepo.EXPECT().
		List(gomock.Any(), d.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p ports.AuditListParams) ([]domain.AuditEntry, int64, error) {
			assert.Equal(t, frontDesk.CentreID, *p.CentreID)
			assert.Equal(t, &staff, p.ActorStaffID)
			assert.Equal(t, 20, p.PageSize)
			return []domain.AuditEntry{{ID: 1, Action: domain.AuditActionDebit}}, 1, nil
		})

	entries, total, err := d.svc.AuditLog(context.Background(), frontDesk, ports.AuditQuery{ActorStaffID: &staff})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)
}

func TestQueryService_CentreActivity(t *testing.T) {
	d := setupQueryService(t)
	d.expectSnapshot()
	d.txRepo.EXPECT().
		List(gomock.Any(), d.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Nil(t, p.WalletID)
			assert.Equal(t, frontDesk.CentreID, *p.CentreID)
			assert.Equal(t, 2, p.Page)
			return nil, 0, nil
		})

	items, total, err := d.svc.CentreActivity(context.Background(), frontDesk, ports.ActivityQuery{Page: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestQueryService_SnapshotFailure(t *testing.T) {
	d := setupQueryService(t)
	d.transactor.EXPECT().BeginSnapshot(gomock.Any()).Return(nil, errors.New("pool exhausted"))

	_, err := d.svc.CentreSummary(context.Background(), frontDesk, ports.Period{})
	assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(err))
}
