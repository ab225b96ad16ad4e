package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Recharge credits a wallet.
func (s *LedgerEngine) Recharge(ctx context.Context, actor ports.Actor, req ports.MovementRequest) (*ports.MovementResult, error) {
	if req.Category == "" {
		req.Category = domain.CategoryRecharge
	}
	return s.move(ctx, actor, opRecharge, domain.DirectionCredit, req)
}

// Debit withdraws from a wallet. The category is mandatory.
func (s *LedgerEngine) Debit(ctx context.Context, actor ports.Actor, req ports.MovementRequest) (*ports.MovementResult, error) {
	return s.move(ctx, actor, opDebit, domain.DirectionDebit, req)
}

func (s *LedgerEngine) move(
	ctx context.Context,
	actor ports.Actor,
	op string,
	dir domain.Direction,
	req ports.MovementRequest,
) (res *ports.MovementResult, err error) {
	start := time.Now()
	replayed := false
	defer func() { s.observe(op, start, replayed, err) }()

	// 1. Validate input before touching any lock.
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := s.checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := checkText("category", req.Category, maxCategoryLength, true); err != nil {
		return nil, err
	}
	if err := checkText("description", req.Description, maxDescriptionLength, false); err != nil {
		return nil, err
	}
	idem, err := newIdempotency(actor, op, req.IdempotencyKey,
		strconv.FormatInt(req.WalletID, 10), req.Amount.String(), req.Category, req.Description)
	if err != nil {
		return nil, err
	}

	// 2. Replay a committed retry, then reject unknown, foreign and offline
	// wallets without waiting on a lock.
	seen, prior, err := s.precheck(ctx, op, actor, idem, req.WalletID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		res, err = replay[ports.MovementResult](prior)
		replayed = err == nil
		return res, err
	}
	if err := checkMovable(actor, seen[req.WalletID]); err != nil {
		return nil, err
	}

	action := domain.AuditActionRecharge
	if dir == domain.DirectionDebit {
		action = domain.AuditActionDebit
	}

	// 3. Lock, re-validate and write in one unit of work.
	res, replayed, err = runUnit(ctx, s, unitOfWork[ports.MovementResult]{
		op:    op,
		idem:  idem,
		locks: []int64{req.WalletID},
		body: func(ctx context.Context, tx pgx.Tx) (*ports.MovementResult, error) {
			locked, err := s.lockWallets(ctx, tx, req.WalletID)
			if err != nil {
				return nil, err
			}
			w := locked[req.WalletID]
			if err := checkMovable(actor, w); err != nil {
				return nil, err
			}
			if dir == domain.DirectionDebit && !w.CanCover(req.Amount) {
				return nil, apperror.ErrInsufficientFunds()
			}

			t, err := s.post(ctx, tx, actor, w, dir, req.Amount, req.Category, req.Description, 0, nil)
			if err != nil {
				return nil, err
			}

			if _, err := s.audit.Record(ctx, tx, actor, action, domain.EntityTransaction, t.ID, map[string]any{
				"wallet_id":     w.ID,
				"direction":     dir,
				"amount":        req.Amount,
				"category":      req.Category,
				"balance_after": t.BalanceAfter,
			}); err != nil {
				return nil, err
			}
			return &ports.MovementResult{Transaction: t, Wallet: w}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return res, nil
	}

	// 4. Best-effort follow-ups.
	eventType := domain.EventWalletRecharged
	if dir == domain.DirectionDebit {
		eventType = domain.EventWalletDebited
	}
	s.publish(ctx, domain.NewLedgerEvent(eventType, actor.CentreID, actor.StaffRef(), res.Transaction.CreatedAt).
		WithWallet(res.Wallet).
		WithTransactions(res.Transaction))
	s.metrics.AddMoved(op, req.Amount)

	s.log.Info().
		Str("operation", op).
		Int64("wallet_id", res.Wallet.ID).
		Int64("transaction_id", res.Transaction.ID).
		Str("amount", req.Amount.String()).
		Str("balance", res.Wallet.Balance.String()).
		Int64("centre_id", actor.CentreID).
		Int64("staff_id", actor.StaffID).
		Msg("movement committed")
	return res, nil
}

// Transfer moves money between two wallets of the caller's centre. Both legs
// commit together or not at all.
func (s *LedgerEngine) Transfer(ctx context.Context, actor ports.Actor, req ports.TransferRequest) (res *ports.TransferResult, err error) {
	start := time.Now()
	replayed := false
	defer func() { s.observe(opTransfer, start, replayed, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if req.FromWalletID == req.ToWalletID {
		return nil, apperror.ErrSameWalletTransfer()
	}
	if err := s.checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := checkText("description", req.Description, maxDescriptionLength, false); err != nil {
		return nil, err
	}
	idem, err := newIdempotency(actor, opTransfer, req.IdempotencyKey,
		strconv.FormatInt(req.FromWalletID, 10), strconv.FormatInt(req.ToWalletID, 10),
		req.Amount.String(), req.Description)
	if err != nil {
		return nil, err
	}

	seen, prior, err := s.precheck(ctx, opTransfer, actor, idem, req.FromWalletID, req.ToWalletID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		res, err = replay[ports.TransferResult](prior)
		replayed = err == nil
		return res, err
	}
	for _, w := range seen {
		if err := checkMovable(actor, w); err != nil {
			return nil, err
		}
	}

	res, replayed, err = runUnit(ctx, s, unitOfWork[ports.TransferResult]{
		op:    opTransfer,
		idem:  idem,
		locks: domain.LockOrder(req.FromWalletID, req.ToWalletID),
		body: func(ctx context.Context, tx pgx.Tx) (*ports.TransferResult, error) {
			locked, err := s.lockWallets(ctx, tx, req.FromWalletID, req.ToWalletID)
			if err != nil {
				return nil, err
			}
			from, to := locked[req.FromWalletID], locked[req.ToWalletID]
			for _, w := range []*domain.Wallet{from, to} {
				if err := checkMovable(actor, w); err != nil {
					return nil, err
				}
			}
			if !from.CanCover(req.Amount) {
				return nil, apperror.ErrInsufficientFunds()
			}

			ids, err := s.txRepo.ReserveIDs(ctx, tx, 2)
			if err != nil {
				return nil, fmt.Errorf("reserve transaction ids: %w", err)
			}
			debitID, creditID := ids[0], ids[1]

			debit, err := s.post(ctx, tx, actor, from, domain.DirectionDebit, req.Amount,
				domain.CategoryTransfer, req.Description, debitID, &creditID)
			if err != nil {
				return nil, err
			}
			credit, err := s.post(ctx, tx, actor, to, domain.DirectionCredit, req.Amount,
				domain.CategoryTransfer, req.Description, creditID, &debitID)
			if err != nil {
				return nil, err
			}

			if _, err := s.audit.Record(ctx, tx, actor, domain.AuditActionTransfer, domain.EntityTransaction, debit.ID, map[string]any{
				"from_wallet_id":        from.ID,
				"to_wallet_id":          to.ID,
				"amount":                req.Amount,
				"debit_transaction_id":  debit.ID,
				"credit_transaction_id": credit.ID,
			}); err != nil {
				return nil, err
			}
			return &ports.TransferResult{Debit: debit, Credit: credit, From: from, To: to}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return res, nil
	}

	s.publish(ctx, domain.NewLedgerEvent(domain.EventWalletTransferred, actor.CentreID, actor.StaffRef(), res.Debit.CreatedAt).
		WithWallet(res.From).
		WithWallet(res.To).
		WithTransactions(res.Debit, res.Credit))
	s.metrics.AddMoved(opTransfer, req.Amount)

	s.log.Info().
		Int64("from_wallet_id", res.From.ID).
		Int64("to_wallet_id", res.To.ID).
		Int64("debit_transaction_id", res.Debit.ID).
		Int64("credit_transaction_id", res.Credit.ID).
		Str("amount", req.Amount.String()).
		Int64("centre_id", actor.CentreID).
		Int64("staff_id", actor.StaffID).
		Msg("transfer committed")
	return res, nil
}

// post applies one signed change to a locked wallet and appends the matching
// transaction. w is updated in place with the new balance. A zero id lets
// the store assign one.
func (s *LedgerEngine) post(
	ctx context.Context,
	tx pgx.Tx,
	actor ports.Actor,
	w *domain.Wallet,
	dir domain.Direction,
	amount decimal.Decimal,
	category, description string,
	id int64,
	linked *int64,
) (*domain.Transaction, error) {
	delta := amount
	if dir == domain.DirectionDebit {
		delta = amount.Neg()
	}
	balance, err := s.wallets.ApplyDelta(ctx, tx, w.ID, delta)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("apply delta to wallet %d: %w", w.ID, err)
	}

	t := &domain.Transaction{
		ID:                  id,
		WalletID:            w.ID,
		CentreID:            w.CentreID,
		Direction:           dir,
		Amount:              amount,
		BalanceAfter:        balance,
		Category:            category,
		Description:         description,
		StaffID:             actor.StaffRef(),
		LinkedTransactionID: linked,
	}
	if err := s.txRepo.Append(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	w.Balance = balance
	w.UpdatedAt = t.CreatedAt
	return t, nil
}
