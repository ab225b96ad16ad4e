package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Paging bounds list endpoints.
type Paging struct {
	DefaultSize int
	MaxSize     int
}

func (p Paging) normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	def, ceiling := p.DefaultSize, p.MaxSize
	if def <= 0 {
		def = 20
	}
	if ceiling <= 0 {
		ceiling = 100
	}
	if size <= 0 {
		size = def
	}
	if size > ceiling {
		size = ceiling
	}
	return page, size
}

// queryService implements ports.QueryService. Every call reads from one
// snapshot, so balances and transactions in a response always agree.
type queryService struct {
	wallets    ports.WalletRepository
	txRepo     ports.TransactionRepository
	auditRepo  ports.AuditRepository
	transactor ports.DBTransactor
	paging     Paging
	log        zerolog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(
	wallets ports.WalletRepository,
	txRepo ports.TransactionRepository,
	auditRepo ports.AuditRepository,
	transactor ports.DBTransactor,
	paging Paging,
	log zerolog.Logger,
) ports.QueryService {
	return &queryService{
		wallets:    wallets,
		txRepo:     txRepo,
		auditRepo:  auditRepo,
		transactor: transactor,
		paging:     paging,
		log:        log,
	}
}

// snapshot runs fn inside a read-only transaction.
func (s *queryService) snapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.transactor.BeginSnapshot(ctx)
	if err != nil {
		return s.internal(fmt.Errorf("begin snapshot: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		if _, ok := apperror.As(err); ok {
			return err
		}
		return s.internal(err)
	}
	return nil
}

func (s *queryService) internal(err error) error {
	s.log.Error().Err(err).Msg("query failed")
	return apperror.InternalError(err)
}

// scopedWallet loads a wallet the actor may see.
func (s *queryService) scopedWallet(ctx context.Context, tx pgx.Tx, actor ports.Actor, id int64) (*domain.Wallet, error) {
	w, err := s.wallets.GetByID(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("get wallet %d: %w", id, err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	if w.CentreID != actor.CentreID {
		return nil, apperror.ErrUnauthorizedScope()
	}
	return w, nil
}

// scopeCentre resolves an optional centre filter against the actor's centre.
func scopeCentre(actor ports.Actor, requested *int64) (int64, error) {
	if err := checkActor(actor); err != nil {
		return 0, err
	}
	if requested != nil && *requested != actor.CentreID {
		return 0, apperror.ErrUnauthorizedScope()
	}
	return actor.CentreID, nil
}

func checkPeriod(p ports.Period) error {
	if p.From != nil && p.To != nil && !p.From.Before(*p.To) {
		return apperror.Validation("period start must be before its end")
	}
	return nil
}

func (s *queryService) ListWallets(ctx context.Context, actor ports.Actor, filter ports.WalletFilter) ([]domain.Wallet, error) {
	centreID, err := scopeCentre(actor, filter.CentreID)
	if err != nil {
		return nil, err
	}
	filter.CentreID = &centreID

	var out []domain.Wallet
	err = s.snapshot(ctx, func(tx pgx.Tx) error {
		out, err = s.wallets.List(ctx, tx, filter)
		return err
	})
	return out, err
}

func (s *queryService) GetWallet(ctx context.Context, actor ports.Actor, walletID int64) (*domain.Wallet, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	var w *domain.Wallet
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		var err error
		w, err = s.scopedWallet(ctx, tx, actor, walletID)
		return err
	})
	return w, err
}

// History returns one page of a wallet's transactions in (created_at, id) order.
func (s *queryService) History(ctx context.Context, actor ports.Actor, q ports.HistoryQuery) (*ports.HistoryPage, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := checkPeriod(q.Period); err != nil {
		return nil, err
	}
	page, size := s.paging.normalize(q.Page, q.PageSize)

	out := &ports.HistoryPage{Page: page, PageSize: size}
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		w, err := s.scopedWallet(ctx, tx, actor, q.WalletID)
		if err != nil {
			return err
		}
		items, total, err := s.txRepo.List(ctx, tx, ports.TransactionListParams{
			WalletID:    &w.ID,
			From:        q.Period.From,
			To:          q.Period.To,
			NewestFirst: q.NewestFirst,
			Page:        page,
			PageSize:    size,
		})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		out.Wallet, out.Items, out.Total = w, items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *queryService) WalletSummary(ctx context.Context, actor ports.Actor, walletID int64, period ports.Period) (*ports.WalletSummary, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	var out *ports.WalletSummary
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		w, err := s.scopedWallet(ctx, tx, actor, walletID)
		if err != nil {
			return err
		}
		totals, err := s.txRepo.Totals(ctx, tx, ports.TotalsParams{WalletID: &w.ID, From: period.From, To: period.To})
		if err != nil {
			return fmt.Errorf("wallet totals: %w", err)
		}
		out = summarize(w, totals)
		return nil
	})
	return out, err
}

// CentreSummary aggregates every wallet of the actor's centre.
func (s *queryService) CentreSummary(ctx context.Context, actor ports.Actor, period ports.Period) (*ports.CentreSummary, error) {
	centreID, err := scopeCentre(actor, nil)
	if err != nil {
		return nil, err
	}
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	out := &ports.CentreSummary{
		CentreID:     centreID,
		TotalBalance: decimal.Zero,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		Wallets:      []ports.WalletSummary{},
	}
	err = s.snapshot(ctx, func(tx pgx.Tx) error {
		wallets, err := s.wallets.List(ctx, tx, ports.WalletFilter{CentreID: &centreID})
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		totals, err := s.txRepo.Totals(ctx, tx, ports.TotalsParams{CentreID: &centreID, From: period.From, To: period.To})
		if err != nil {
			return fmt.Errorf("centre totals: %w", err)
		}

		for i := range wallets {
			ws := summarize(&wallets[i], totals)
			out.Wallets = append(out.Wallets, *ws)
			out.TotalBalance = out.TotalBalance.Add(ws.Balance)
			out.TotalCredits = out.TotalCredits.Add(ws.Totals.Credits)
			out.TotalDebits = out.TotalDebits.Add(ws.Totals.Debits)
		}
		out.WalletCount = len(wallets)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CentreActivity lists centre-wide transactions in chronological order.
func (s *queryService) CentreActivity(ctx context.Context, actor ports.Actor, q ports.ActivityQuery) ([]domain.Transaction, int64, error) {
	centreID, err := scopeCentre(actor, nil)
	if err != nil {
		return nil, 0, err
	}
	if err := checkPeriod(q.Period); err != nil {
		return nil, 0, err
	}
	page, size := s.paging.normalize(q.Page, q.PageSize)

	var (
		items []domain.Transaction
		total int64
	)
	err = s.snapshot(ctx, func(tx pgx.Tx) error {
		items, total, err = s.txRepo.List(ctx, tx, ports.TransactionListParams{
			CentreID: &centreID,
			From:     q.Period.From,
			To:       q.Period.To,
			Page:     page,
			PageSize: size,
		})
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *queryService) AuditLog(ctx context.Context, actor ports.Actor, q ports.AuditQuery) ([]domain.AuditEntry, int64, error) {
	centreID, err := scopeCentre(actor, q.CentreID)
	if err != nil {
		return nil, 0, err
	}
	if err := checkPeriod(q.Period); err != nil {
		return nil, 0, err
	}
	page, size := s.paging.normalize(q.Page, q.PageSize)

	var (
		entries []domain.AuditEntry
		total   int64
	)
	err = s.snapshot(ctx, func(tx pgx.Tx) error {
		entries, total, err = s.auditRepo.List(ctx, tx, ports.AuditListParams{
			CentreID:     &centreID,
			ActorStaffID: q.ActorStaffID,
			From:         q.Period.From,
			To:           q.Period.To,
			Page:         page,
			PageSize:     size,
		})
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Reconcile recomputes a wallet's balance from its full transaction history.
func (s *queryService) Reconcile(ctx context.Context, actor ports.Actor, walletID int64) (*ports.Reconciliation, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var out *ports.Reconciliation
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		w, err := s.scopedWallet(ctx, tx, actor, walletID)
		if err != nil {
			return err
		}
		totals, err := s.txRepo.Totals(ctx, tx, ports.TotalsParams{WalletID: &w.ID})
		if err != nil {
			return fmt.Errorf("wallet totals: %w", err)
		}
		ft := totalsFor(w.ID, totals)
		computed := ft.Net()
		out = &ports.Reconciliation{
			WalletID:         w.ID,
			StoredBalance:    w.Balance,
			ComputedBalance:  computed,
			TransactionCount: ft.CreditCount + ft.DebitCount,
			Consistent:       computed.Equal(w.Balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Consistent {
		s.log.Error().
			Int64("wallet_id", walletID).
			Str("stored", out.StoredBalance.String()).
			Str("computed", out.ComputedBalance.String()).
			Msg("wallet balance does not match its transactions")
	}
	return out, nil
}

func summarize(w *domain.Wallet, totals []domain.FlowTotals) *ports.WalletSummary {
	return &ports.WalletSummary{
		WalletID: w.ID,
		Name:     w.Name,
		Status:   w.Status,
		Balance:  w.Balance,
		Totals:   totalsFor(w.ID, totals),
	}
}

func totalsFor(walletID int64, totals []domain.FlowTotals) domain.FlowTotals {
	for _, ft := range totals {
		if ft.WalletID == walletID {
			return ft
		}
	}
	return domain.FlowTotals{WalletID: walletID, Credits: decimal.Zero, Debits: decimal.Zero}
}
