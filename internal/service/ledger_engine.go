package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	maxNameLength         = 100
	maxCategoryLength     = 64
	maxDescriptionLength  = 500
	maxIdempotencyKey     = 128
)

// Operation names used in logs, metrics and idempotency keys.
const (
	opCreateWallet = domain.OpCreateWallet
	opUpdateWallet = "update_wallet"
	opRecharge     = domain.OpRecharge
	opDebit        = domain.OpDebit
	opTransfer     = domain.OpTransfer
)

// LedgerEngineDeps wires a LedgerEngine. Cache, Publisher and Metrics are optional.
type LedgerEngineDeps struct {
	Wallets        ports.WalletRepository
	Transactions   ports.TransactionRepository
	Idempotency    ports.IdempotencyRepository
	Transactor     ports.DBTransactor
	Locker         ports.WalletLocker
	Audit          *AuditTrail
	Cache          ports.IdempotencyCache
	Publisher      ports.EventPublisher
	Metrics        *metrics.LedgerMetrics
	Policy         domain.AmountPolicy
	IdempotencyTTL time.Duration
	Log            zerolog.Logger
}

// LedgerEngine implements ports.LedgerService. It is the only component that
// changes wallet balances.
type LedgerEngine struct {
	wallets    ports.WalletRepository
	txRepo     ports.TransactionRepository
	idempRepo  ports.IdempotencyRepository
	transactor ports.DBTransactor
	locker     ports.WalletLocker
	audit      *AuditTrail
	idempCache ports.IdempotencyCache
	publisher  ports.EventPublisher
	metrics    *metrics.LedgerMetrics
	policy     domain.AmountPolicy
	idempTTL   time.Duration
	log        zerolog.Logger
}

// NewLedgerEngine creates a new LedgerEngine.
func NewLedgerEngine(d LedgerEngineDeps) *LedgerEngine {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &LedgerEngine{
		wallets:    d.Wallets,
		txRepo:     d.Transactions,
		idempRepo:  d.Idempotency,
		transactor: d.Transactor,
		locker:     d.Locker,
		audit:      d.Audit,
		idempCache: d.Cache,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		policy:     d.Policy,
		idempTTL:   ttl,
		log:        d.Log,
	}
}

var _ ports.LedgerService = (*LedgerEngine)(nil)

// ---- unit of work ----

// unitOfWork describes one mutating call executed by runUnit.
type unitOfWork[T any] struct {
	op    string
	idem  idempotency
	locks []int64
	body  func(ctx context.Context, tx pgx.Tx) (*T, error)
}

// runUnit acquires the wallet locks, runs body inside one database transaction
// and commits. Nothing is persisted unless every step succeeds.
func runUnit[T any](ctx context.Context, s *LedgerEngine, u unitOfWork[T]) (*T, bool, error) {
	if raw := s.cachedResponse(ctx, u.idem); raw != nil {
		res, err := replay[T](raw)
		return res, err == nil, err
	}

	if len(u.locks) > 0 {
		waitStart := time.Now()
		release, err := s.locker.Acquire(ctx, u.locks)
		s.metrics.ObserveLockWait(time.Since(waitStart))
		if err != nil {
			return nil, false, s.fail(u.op, err)
		}
		defer release()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, s.fail(u.op, fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if u.idem.enabled() {
		raw, err := s.storedResponse(ctx, dbTx, u.idem)
		if err != nil {
			return nil, false, s.fail(u.op, err)
		}
		if raw != nil {
			res, err := replay[T](raw)
			return res, err == nil, err
		}
	}

	res, err := u.body(ctx, dbTx)
	if err != nil {
		return nil, false, s.fail(u.op, err)
	}

	var record *domain.IdempotencyLog
	if u.idem.enabled() {
		record, err = s.remember(ctx, dbTx, u.idem, res)
		if err != nil {
			return replayRace[T](ctx, s, u, err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		if u.idem.enabled() {
			return replayRace[T](ctx, s, u, err)
		}
		return nil, false, s.fail(u.op, fmt.Errorf("commit: %w", err))
	}

	if record != nil {
		s.cacheResponse(ctx, record)
	}
	return res, false, nil
}

// replayRace handles a concurrent request that recorded the same idempotency
// key first: its committed response is replayed.
func replayRace[T any](ctx context.Context, s *LedgerEngine, u unitOfWork[T], cause error) (*T, bool, error) {
	raw, err := s.committedResponse(ctx, u.op, u.idem, cause)
	if err != nil {
		return nil, false, err
	}
	res, err := replay[T](raw)
	return res, err == nil, err
}

func (s *LedgerEngine) committedResponse(ctx context.Context, op string, idem idempotency, cause error) ([]byte, error) {
	if !errors.Is(cause, ports.ErrIdempotencyKeyExists) {
		return nil, s.fail(op, fmt.Errorf("record idempotency key: %w", cause))
	}

	snap, err := s.transactor.BeginSnapshot(ctx)
	if err != nil {
		return nil, s.fail(op, fmt.Errorf("begin snapshot: %w", err))
	}
	defer snap.Rollback(ctx) //nolint:errcheck

	raw, err := s.storedResponse(ctx, snap, idem)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if raw == nil {
		return nil, s.fail(op, fmt.Errorf("idempotency key %q vanished", idem.key))
	}
	return raw, nil
}

// fail maps an error to the public taxonomy. Unexpected errors are logged and
// reported as a generic internal error.
func (s *LedgerEngine) fail(op string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	s.log.Error().Err(err).Str("operation", op).Msg("ledger operation failed")
	return apperror.InternalError(err)
}

// observe records the outcome of one public call.
func (s *LedgerEngine) observe(op string, start time.Time, replayed bool, err error) {
	result := metrics.ResultOK
	switch {
	case err != nil && apperror.CodeOf(err) == apperror.CodeInternal:
		result = metrics.ResultError
	case err != nil:
		result = metrics.ResultRejected
	case replayed:
		result = metrics.ResultReplayed
	}
	s.metrics.ObserveOperation(op, result, time.Since(start))
}

// publish emits a committed change. Failures never affect the committed result.
func (s *LedgerEngine) publish(ctx context.Context, ev *domain.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn().Err(err).
			Str("event_id", ev.ID.String()).
			Str("event_type", string(ev.Type)).
			Msg("failed to publish ledger event")
	}
}

// ---- idempotency ----

// idempotency identifies a retryable request. An empty key disables replay.
type idempotency struct {
	key  string
	hash string
}

func (i idempotency) enabled() bool { return i.key != "" }

func newIdempotency(actor ports.Actor, op, clientKey string, fingerprint ...string) (idempotency, error) {
	if clientKey == "" {
		return idempotency{}, nil
	}
	if len(clientKey) > maxIdempotencyKey {
		return idempotency{}, apperror.Validation("idempotency key is too long")
	}
	return idempotency{
		key:  domain.BuildIdempotencyKey(actor.CentreID, actor.StaffID, op, clientKey),
		hash: domain.Fingerprint(fingerprint...),
	}, nil
}

// cachedResponse consults the Redis fast path. Cache errors fall through to the database.
func (s *LedgerEngine) cachedResponse(ctx context.Context, idem idempotency) []byte {
	if !idem.enabled() || s.idempCache == nil {
		return nil
	}
	raw, err := s.idempCache.Get(ctx, idem.key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idem.key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}
	var record domain.IdempotencyLog
	if err := json.Unmarshal(raw, &record); err != nil || record.RequestHash != idem.hash {
		// Mismatches are decided authoritatively under lock.
		return nil
	}
	return record.ResponseJSON
}

// storedResponse is the authoritative check, run inside the unit of work.
func (s *LedgerEngine) storedResponse(ctx context.Context, tx pgx.Tx, idem idempotency) ([]byte, error) {
	record, err := s.idempRepo.Get(ctx, tx, idem.key)
	if err != nil {
		return nil, fmt.Errorf("db idempotency check: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	if record.RequestHash != idem.hash {
		return nil, apperror.ErrIdempotencyConflict()
	}
	return record.ResponseJSON, nil
}

func (s *LedgerEngine) remember(ctx context.Context, tx pgx.Tx, idem idempotency, res any) (*domain.IdempotencyLog, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	record := &domain.IdempotencyLog{
		Key:          idem.key,
		RequestHash:  idem.hash,
		ResponseJSON: raw,
	}
	if err := s.idempRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// cacheResponse populates the Redis fast path after commit (best-effort).
func (s *LedgerEngine) cacheResponse(ctx context.Context, record *domain.IdempotencyLog) {
	if s.idempCache == nil {
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, record.Key, raw, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", record.Key).Msg("failed to cache idempotency response")
	}
}

func replay[T any](raw []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored response: %w", err))
	}
	return &res, nil
}

// ---- validation & scope ----

func (s *LedgerEngine) checkAmount(amount decimal.Decimal) error {
	switch err := s.policy.Check(amount); {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAmountTooLarge):
		return apperror.ErrAmountLimitExceeded()
	default:
		return apperror.ErrInvalidAmount()
	}
}

func checkActor(actor ports.Actor) error {
	if actor.CentreID <= 0 {
		return apperror.ErrUnauthorizedScope()
	}
	if actor.StaffID < 0 {
		return apperror.Validation("staff id must not be negative")
	}
	return nil
}

func checkText(field, value string, limit int, required bool) error {
	if required && value == "" {
		return apperror.Validation(field + " is required")
	}
	if utf8.RuneCountInString(value) > limit {
		return apperror.Validation(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

// checkMovable verifies a wallet may take part in a money movement.
func checkMovable(actor ports.Actor, w *domain.Wallet) error {
	if w.CentreID != actor.CentreID {
		return apperror.ErrUnauthorizedScope()
	}
	if !w.IsOnline() {
		return apperror.ErrWalletOffline()
	}
	return nil
}

// precheck loads the wallets from a snapshot so unknown or foreign wallets
// are rejected before any lock is taken. A retried request whose key already
// committed gets its stored response back instead, whatever state the
// wallets are in now.
func (s *LedgerEngine) precheck(ctx context.Context, op string, actor ports.Actor, idem idempotency, ids ...int64) (map[int64]*domain.Wallet, []byte, error) {
	if raw := s.cachedResponse(ctx, idem); raw != nil {
		return nil, raw, nil
	}

	snap, err := s.transactor.BeginSnapshot(ctx)
	if err != nil {
		return nil, nil, s.fail(op, fmt.Errorf("begin snapshot: %w", err))
	}
	defer snap.Rollback(ctx) //nolint:errcheck

	if idem.enabled() {
		raw, err := s.storedResponse(ctx, snap, idem)
		if err != nil {
			return nil, nil, s.fail(op, err)
		}
		if raw != nil {
			return nil, raw, nil
		}
	}

	out := make(map[int64]*domain.Wallet, len(ids))
	for _, id := range ids {
		w, err := s.wallets.GetByID(ctx, snap, id)
		if err != nil {
			return nil, nil, s.fail(op, fmt.Errorf("get wallet %d: %w", id, err))
		}
		if w == nil {
			return nil, nil, apperror.ErrNotFound("Wallet")
		}
		if w.CentreID != actor.CentreID {
			return nil, nil, apperror.ErrUnauthorizedScope()
		}
		out[id] = w
	}
	return out, nil, nil
}

// lockWallets row-locks the wallets inside the unit of work.
func (s *LedgerEngine) lockWallets(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]*domain.Wallet, error) {
	locked, err := s.wallets.LockForUpdate(ctx, tx, ids)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("lock wallets: %w", err)
	}
	for _, id := range ids {
		if locked[id] == nil {
			return nil, apperror.ErrNotFound("Wallet")
		}
	}
	return locked, nil
}
