package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() *domain.LedgerEvent {
	staff := int64(4)
	w := &domain.Wallet{ID: 12, CentreID: 3, Balance: decimal.RequireFromString("80.25")}
	tx := &domain.Transaction{ID: 99, WalletID: 12, Amount: decimal.RequireFromString("19.75")}
	return domain.NewLedgerEvent(domain.EventWalletDebited, 3, &staff, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)).
		WithWallet(w).
		WithTransactions(tx)
}

func TestPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newPublisher(fw, time.Second, zerolog.Nop())
	ev := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, fw.msgs, 1)
	assert.True(t, fw.deadline, "writes are bounded by the configured timeout")

	msg := fw.msgs[0]
	assert.Equal(t, "3", string(msg.Key))
	assert.Equal(t, ev.OccurredAt, msg.Time)
	assert.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte("wallet.debited")},
		{Key: "event_id", Value: []byte(ev.ID.String())},
	}, msg.Headers)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "wallet.debited", decoded["type"])
	assert.Equal(t, "19.75", decoded["amount"])
	assert.Equal(t, []any{float64(12)}, decoded["wallet_ids"])
}

func TestPublisher_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	p := newPublisher(fw, 0, zerolog.Nop())

	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet.debited")
	assert.False(t, fw.deadline)
}

func TestPublisher_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, newPublisher(fw, 0, zerolog.Nop()).Close())
	assert.True(t, fw.closed)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), sampleEvent()))
}
