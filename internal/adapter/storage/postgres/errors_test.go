package postgres

import (
	"errors"
	"testing"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapLockError(t *testing.T) {
	for _, code := range []string{codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure} {
		err := mapLockError("lock wallets", &pgconn.PgError{Code: code})
		assert.Equal(t, apperror.CodeLockTimeout, apperror.CodeOf(err), code)
	}

	err := mapLockError("lock wallets", errors.New("conn reset"))
	assert.Empty(t, apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "lock wallets: conn reset")
}

func TestWhereBuilder(t *testing.T) {
	var b whereBuilder
	assert.Empty(t, b.sql())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.add("centre_id = $%d", int64(4))
	b.add("created_at >= $%d", at)
	assert.Equal(t, "WHERE centre_id = $1 AND created_at >= $2", b.sql())

	assert.Equal(t, " LIMIT $3 OFFSET $4", b.page(3, 20))
	assert.Equal(t, []any{int64(4), at, 20, 40}, b.args)
}

func TestWhereBuilder_NoPaging(t *testing.T) {
	var b whereBuilder
	assert.Empty(t, b.page(1, 0))
	assert.Empty(t, b.args)
}
