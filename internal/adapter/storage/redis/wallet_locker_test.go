package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestWalletLocker_AcquireAndRelease(t *testing.T) {
	s, client := newTestClient(t)
	locker := NewWalletLocker(client, 30*time.Second, time.Second, zerolog.Nop())

	release, err := locker.Acquire(context.Background(), []int64{7, 2})
	require.NoError(t, err)
	assert.True(t, s.Exists("wlg:lock:wallet:2"))
	assert.True(t, s.Exists("wlg:lock:wallet:7"))

	release()
	release()
	assert.False(t, s.Exists("wlg:lock:wallet:2"))
	assert.False(t, s.Exists("wlg:lock:wallet:7"))
}

func TestWalletLocker_TimesOut(t *testing.T) {
	s, client := newTestClient(t)
	locker := NewWalletLocker(client, 30*time.Second, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Set("wlg:lock:wallet:5", "someone-else"))

	_, err := locker.Acquire(context.Background(), []int64{3, 5})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeLockTimeout, apperror.CodeOf(err))

	assert.False(t, s.Exists("wlg:lock:wallet:3"), "partially acquired locks must be released")
	got, _ := s.Get("wlg:lock:wallet:5")
	assert.Equal(t, "someone-else", got, "a foreign lock is never released")
}

func TestWalletLocker_ReleaseKeepsForeignToken(t *testing.T) {
	s, client := newTestClient(t)
	locker := NewWalletLocker(client, 30*time.Second, time.Second, zerolog.Nop())

	release, err := locker.Acquire(context.Background(), []int64{1})
	require.NoError(t, err)

	// the lock expired and another holder took it
	require.NoError(t, s.Set("wlg:lock:wallet:1", "new-holder"))
	release()

	got, _ := s.Get("wlg:lock:wallet:1")
	assert.Equal(t, "new-holder", got)
}

func TestWalletLocker_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewWalletLocker(client, 30*time.Second, 5*time.Second, zerolog.Nop())

	var (
		mu      sync.Mutex
		counter int
		inside  atomic.Int32
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		ids := []int64{1, 2}
		if i%2 == 1 {
			ids = []int64{2, 1}
		}
		g.Go(func() error {
			release, err := locker.Acquire(ctx, ids)
			if err != nil {
				return err
			}
			defer release()
			if inside.Add(1) != 1 {
				t.Error("two holders inside the critical section")
			}
			mu.Lock()
			counter++
			mu.Unlock()
			inside.Add(-1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 20, counter)
}
