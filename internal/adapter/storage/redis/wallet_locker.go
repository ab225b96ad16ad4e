package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes a lock only if it still carries the caller's token,
// so an expired holder never frees a lock someone else took over.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const defaultRetryInterval = 15 * time.Millisecond

// WalletLocker serializes wallet mutations across service instances with
// SET NX PX keys. Locks are taken in ascending wallet id order.
type WalletLocker struct {
	client  goredis.Cmdable
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
	log     zerolog.Logger
}

var _ ports.WalletLocker = (*WalletLocker)(nil)

// NewWalletLocker creates a locker. ttl bounds how long a crashed holder can
// block a wallet; timeout bounds how long Acquire waits.
func NewWalletLocker(client goredis.Cmdable, ttl, timeout time.Duration, log zerolog.Logger) *WalletLocker {
	return &WalletLocker{
		client:  client,
		prefix:  "wlg:lock:wallet:",
		ttl:     ttl,
		timeout: timeout,
		retry:   defaultRetryInterval,
		log:     log,
	}
}

func (l *WalletLocker) key(id int64) string {
	return l.prefix + strconv.FormatInt(id, 10)
}

// Acquire locks every wallet or none.
func (l *WalletLocker) Acquire(ctx context.Context, walletIDs []int64) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	token := uuid.NewString()
	order := domain.LockOrder(walletIDs...)
	held := make([]string, 0, len(order))
	for _, id := range order {
		key := l.key(id)
		if err := l.lock(ctx, key, token); err != nil {
			l.releaseAll(held, token)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, apperror.ErrLockTimeout(fmt.Errorf("wallet %d: %w", id, err))
			}
			return nil, fmt.Errorf("lock wallet %d: %w", id, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held, token) }) }, nil
}

func (l *WalletLocker) lock(ctx context.Context, key, token string) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		err := l.client.SetArgs(ctx, key, token, goredis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, goredis.Nil):
			timer.Reset(l.retry)
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// releaseAll unlocks in reverse acquisition order. It runs on its own
// context because the caller's may already be done.
func (l *WalletLocker) releaseAll(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", keys[i]).Msg("wallet lock release failed, waiting for ttl")
		}
	}
}
