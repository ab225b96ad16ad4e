package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, centre_id, direction, amount, balance_after,
		category, description, staff_id, linked_transaction_id, created_at`

// TransactionRepo implements ports.TransactionRepository over the append-only
// wallet_transactions table.
type TransactionRepo struct{}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{}
}

var _ ports.TransactionRepository = (*TransactionRepo)(nil)

// ReserveIDs draws n ids from the table's sequence.
func (r *TransactionRepo) ReserveIDs(ctx context.Context, tx pgx.Tx, n int) ([]int64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reserve transaction ids: invalid count %d", n)
	}
	rows, err := tx.Query(ctx,
		`SELECT nextval(pg_get_serial_sequence('wallet_transactions', 'id')) FROM generate_series(1, $1)`, n)
	if err != nil {
		return nil, fmt.Errorf("reserve transaction ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("reserve transaction ids: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Append inserts a transaction within a database transaction.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	args := []any{
		t.WalletID, t.CentreID, t.Direction, t.Amount, t.BalanceAfter,
		t.Category, t.Description, t.StaffID, t.LinkedTransactionID,
	}

	var err error
	if t.ID == 0 {
		err = tx.QueryRow(ctx, `INSERT INTO wallet_transactions
			(wallet_id, centre_id, direction, amount, balance_after, category, description, staff_id, linked_transaction_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at`, args...).Scan(&t.ID, &t.CreatedAt)
	} else {
		err = tx.QueryRow(ctx, `INSERT INTO wallet_transactions
			(wallet_id, centre_id, direction, amount, balance_after, category, description, staff_id, linked_transaction_id, id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at`, append(args, t.ID)...).Scan(&t.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func transactionFilter(walletID, centreID *int64, from, to *time.Time) *whereBuilder {
	b := &whereBuilder{}
	if walletID != nil {
		b.add("wallet_id = $%d", *walletID)
	}
	if centreID != nil {
		b.add("centre_id = $%d", *centreID)
	}
	if from != nil {
		b.add("created_at >= $%d", *from)
	}
	if to != nil {
		b.add("created_at < $%d", *to)
	}
	return b
}

// List fetches transactions with filtering and pagination in (created_at, id) order.
func (r *TransactionRepo) List(ctx context.Context, tx pgx.Tx, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	b := transactionFilter(params.WalletID, params.CentreID, params.From, params.To)
	where := b.sql()

	// Count total
	var total int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM wallet_transactions "+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	order := "created_at, id"
	if params.NewestFirst {
		order = "created_at DESC, id DESC"
	}
	dataQuery := fmt.Sprintf(`SELECT %s FROM wallet_transactions %s ORDER BY %s`, transactionColumns, where, order)
	dataQuery += b.page(params.Page, params.PageSize)

	rows, err := tx.Query(ctx, dataQuery, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.CentreID, &t.Direction, &t.Amount, &t.BalanceAfter,
			&t.Category, &t.Description, &t.StaffID, &t.LinkedTransactionID, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// Totals aggregates credits and debits per wallet.
func (r *TransactionRepo) Totals(ctx context.Context, tx pgx.Tx, params ports.TotalsParams) ([]domain.FlowTotals, error) {
	b := transactionFilter(params.WalletID, params.CentreID, params.From, params.To)

	query := fmt.Sprintf(`SELECT wallet_id,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'credit'), 0) AS credits,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'debit'), 0) AS debits,
		COUNT(*) FILTER (WHERE direction = 'credit') AS credit_count,
		COUNT(*) FILTER (WHERE direction = 'debit') AS debit_count
		FROM wallet_transactions %s
		GROUP BY wallet_id ORDER BY wallet_id`, b.sql())

	rows, err := tx.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("transaction totals: %w", err)
	}
	defer rows.Close()

	var out []domain.FlowTotals
	for rows.Next() {
		var ft domain.FlowTotals
		if err := rows.Scan(&ft.WalletID, &ft.Credits, &ft.Debits, &ft.CreditCount, &ft.DebitCount); err != nil {
			return nil, fmt.Errorf("scan totals row: %w", err)
		}
		out = append(out, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate totals rows: %w", err)
	}
	return out, nil
}
