package postgres

import (
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger reacts to.
const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapLockError turns lock contention reported by PostgreSQL into a lock timeout.
func mapLockError(op string, err error) error {
	switch pgCode(err) {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// whereBuilder collects numbered conditions for dynamic queries.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; expr holds a single %d for the placeholder number.
func (b *whereBuilder) add(expr string, arg any) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf(expr, len(b.args)))
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders. A non-positive size returns everything.
func (b *whereBuilder) page(page, size int) string {
	if size <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	b.args = append(b.args, size, (page-1)*size)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(b.args)-1, len(b.args))
}
