package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, centre_id, name, kind, ownership, assigned_staff_id, status,
		balance, allow_overdraft, created_by, created_at, updated_at`

// WalletRepo implements ports.WalletRepository. Every method runs on the
// caller's transaction.
type WalletRepo struct{}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo() *WalletRepo {
	return &WalletRepo{}
}

var _ ports.WalletRepository = (*WalletRepo)(nil)

// Create inserts a wallet with a zero balance.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (centre_id, name, kind, ownership, assigned_staff_id, status, allow_overdraft, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, balance, created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		w.CentreID, w.Name, w.Kind, w.Ownership, w.AssignedStaffID,
		w.Status, w.AllowOverdraft, w.CreatedBy,
	).Scan(&w.ID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Update persists the non-monetary columns.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets
		SET name = $1, kind = $2, ownership = $3, assigned_staff_id = $4, status = $5,
			allow_overdraft = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at`

	err := tx.QueryRow(ctx, query,
		w.Name, w.Kind, w.Ownership, w.AssignedStaffID, w.Status, w.AllowOverdraft, w.ID,
	).Scan(&w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update wallet %d: %w", w.ID, err)
	}
	return nil
}

// GetByID fetches a wallet by id (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// List returns the wallets matching filter in id order.
func (r *WalletRepo) List(ctx context.Context, tx pgx.Tx, filter ports.WalletFilter) ([]domain.Wallet, error) {
	var b whereBuilder
	if filter.CentreID != nil {
		b.add("centre_id = $%d", *filter.CentreID)
	}
	if filter.Status != nil {
		b.add("status = $%d", *filter.Status)
	}
	if filter.Kind != nil {
		b.add("kind = $%d", *filter.Kind)
	}
	if filter.AssignedStaffID != nil {
		b.add("assigned_staff_id = $%d", *filter.AssignedStaffID)
	}

	query := fmt.Sprintf(`SELECT %s FROM wallets %s ORDER BY id`, walletColumns, b.sql())
	rows, err := tx.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	wallets := []domain.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// LockForUpdate row-locks the wallets in ascending id order.
// This MUST be called within a transaction.
func (r *WalletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, domain.LockOrder(ids...))
	if err != nil {
		return nil, mapLockError("lock wallets", err)
	}
	defer rows.Close()

	out := make(map[int64]*domain.Wallet, len(ids))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		out[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, mapLockError("lock wallets", err)
	}
	return out, nil
}

// ApplyDelta adds delta to the balance unless that would take a
// non-overdraft wallet below zero.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE id = $2 AND (allow_overdraft OR balance + $1 >= 0)
		RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRow(ctx, query, delta, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, mapLockError("apply balance delta", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("check wallet exists: %w", err)
	}
	if !exists {
		return decimal.Zero, fmt.Errorf("wallet %d: %w", id, pgx.ErrNoRows)
	}
	return decimal.Zero, apperror.ErrInsufficientFunds()
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.CentreID, &w.Name, &w.Kind, &w.Ownership, &w.AssignedStaffID, &w.Status,
		&w.Balance, &w.AllowOverdraft, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}
