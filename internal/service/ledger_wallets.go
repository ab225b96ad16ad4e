package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// CreateWallet registers a wallet. A positive initial balance is recorded as an
// opening-balance credit so the balance always equals the sum of its transactions.
func (s *LedgerEngine) CreateWallet(ctx context.Context, actor ports.Actor, req ports.CreateWalletRequest) (res *domain.Wallet, err error) {
	start := time.Now()
	replayed := false
	defer func() { s.observe(opCreateWallet, start, replayed, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if req.CentreID == 0 {
		req.CentreID = actor.CentreID
	}
	if req.CentreID != actor.CentreID {
		return nil, apperror.ErrUnauthorizedScope()
	}
	if req.Status == "" {
		req.Status = domain.WalletStatusOnline
	}

	w := &domain.Wallet{
		CentreID:        req.CentreID,
		Name:            strings.TrimSpace(req.Name),
		Kind:            req.Kind,
		Ownership:       req.Ownership,
		AssignedStaffID: req.AssignedStaffID,
		Status:          req.Status,
		AllowOverdraft:  req.AllowOverdraft,
		CreatedBy:       actor.StaffRef(),
	}
	if err := checkWalletFields(w); err != nil {
		return nil, err
	}
	if req.InitialBalance.IsNegative() {
		return nil, apperror.Validation("initial balance must not be negative")
	}
	if err := s.policy.CheckPrecision(req.InitialBalance); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}

	idem, err := newIdempotency(actor, opCreateWallet, req.IdempotencyKey,
		strconv.FormatInt(w.CentreID, 10), w.Name, string(w.Kind), string(w.Ownership),
		formatRef(w.AssignedStaffID), string(w.Status), req.InitialBalance.String(),
		strconv.FormatBool(w.AllowOverdraft))
	if err != nil {
		return nil, err
	}

	res, replayed, err = runUnit(ctx, s, unitOfWork[domain.Wallet]{
		op:   opCreateWallet,
		idem: idem,
		body: func(ctx context.Context, tx pgx.Tx) (*domain.Wallet, error) {
			created := w.Clone()
			if err := s.wallets.Create(ctx, tx, created); err != nil {
				return nil, fmt.Errorf("insert wallet: %w", err)
			}
			if req.InitialBalance.IsPositive() {
				if _, err := s.post(ctx, tx, actor, created, domain.DirectionCredit, req.InitialBalance,
					domain.CategoryOpeningBalance, "Opening balance", 0, nil); err != nil {
					return nil, err
				}
			}
			if _, err := s.audit.Record(ctx, tx, actor, domain.AuditActionWalletCreate, domain.EntityWallet, created.ID, map[string]any{
				"name":            created.Name,
				"kind":            created.Kind,
				"ownership":       created.Ownership,
				"status":          created.Status,
				"initial_balance": req.InitialBalance,
				"allow_overdraft": created.AllowOverdraft,
			}); err != nil {
				return nil, err
			}
			return created, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return res, nil
	}

	s.publish(ctx, domain.NewLedgerEvent(domain.EventWalletCreated, actor.CentreID, actor.StaffRef(), res.CreatedAt).
		WithWallet(res))
	s.log.Info().
		Int64("wallet_id", res.ID).
		Int64("centre_id", res.CentreID).
		Str("kind", string(res.Kind)).
		Str("initial_balance", req.InitialBalance.String()).
		Msg("wallet created")
	return res, nil
}

// UpdateWallet changes non-monetary fields. The balance is never touched.
func (s *LedgerEngine) UpdateWallet(ctx context.Context, actor ports.Actor, walletID int64, patch ports.WalletPatch) (res *domain.Wallet, err error) {
	start := time.Now()
	defer func() { s.observe(opUpdateWallet, start, false, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperror.Validation("no fields to update")
	}

	seen, _, err := s.precheck(ctx, opUpdateWallet, actor, idempotency{}, walletID)
	if err != nil {
		return nil, err
	}
	if _, _, err := applyPatch(seen[walletID], patch); err != nil {
		return nil, err
	}

	res, _, err = runUnit(ctx, s, unitOfWork[domain.Wallet]{
		op:    opUpdateWallet,
		locks: []int64{walletID},
		body: func(ctx context.Context, tx pgx.Tx) (*domain.Wallet, error) {
			locked, err := s.lockWallets(ctx, tx, walletID)
			if err != nil {
				return nil, err
			}
			current := locked[walletID]
			if current.CentreID != actor.CentreID {
				return nil, apperror.ErrUnauthorizedScope()
			}
			updated, changes, err := applyPatch(current, patch)
			if err != nil {
				return nil, err
			}
			if len(changes) == 0 {
				return updated, nil
			}
			if err := s.wallets.Update(ctx, tx, updated); err != nil {
				return nil, fmt.Errorf("update wallet: %w", err)
			}
			if _, err := s.audit.Record(ctx, tx, actor, domain.AuditActionWalletUpdate, domain.EntityWallet, updated.ID, map[string]any{
				"changes": changes,
			}); err != nil {
				return nil, err
			}
			return updated, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NewLedgerEvent(domain.EventWalletUpdated, actor.CentreID, actor.StaffRef(), res.UpdatedAt).
		WithWallet(res))
	s.log.Info().
		Int64("wallet_id", res.ID).
		Str("status", string(res.Status)).
		Int64("staff_id", actor.StaffID).
		Msg("wallet updated")
	return res, nil
}

// fieldChange is one audited before/after pair.
type fieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// applyPatch returns a patched copy of w and the fields that actually changed.
func applyPatch(w *domain.Wallet, patch ports.WalletPatch) (*domain.Wallet, map[string]fieldChange, error) {
	out := w.Clone()
	changes := map[string]fieldChange{}

	if patch.Name != nil {
		out.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Kind != nil {
		out.Kind = *patch.Kind
	}
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	if patch.Ownership != nil {
		out.Ownership = *patch.Ownership
		if out.Ownership == domain.WalletOwnershipShared {
			out.AssignedStaffID = nil
		}
	}
	if patch.AssignedStaffID != nil {
		id := *patch.AssignedStaffID
		out.AssignedStaffID = &id
	}
	if patch.AllowOverdraft != nil {
		out.AllowOverdraft = *patch.AllowOverdraft
		if !out.AllowOverdraft && out.Balance.IsNegative() {
			return nil, nil, apperror.Validation("overdraft cannot be disabled while the balance is negative")
		}
	}
	if err := checkWalletFields(out); err != nil {
		return nil, nil, err
	}

	if out.Name != w.Name {
		changes["name"] = fieldChange{w.Name, out.Name}
	}
	if out.Kind != w.Kind {
		changes["kind"] = fieldChange{w.Kind, out.Kind}
	}
	if out.Status != w.Status {
		changes["status"] = fieldChange{w.Status, out.Status}
	}
	if out.Ownership != w.Ownership {
		changes["ownership"] = fieldChange{w.Ownership, out.Ownership}
	}
	if formatRef(out.AssignedStaffID) != formatRef(w.AssignedStaffID) {
		changes["assigned_staff_id"] = fieldChange{w.AssignedStaffID, out.AssignedStaffID}
	}
	if out.AllowOverdraft != w.AllowOverdraft {
		changes["allow_overdraft"] = fieldChange{w.AllowOverdraft, out.AllowOverdraft}
	}
	return out, changes, nil
}

func checkWalletFields(w *domain.Wallet) error {
	if err := checkText("name", w.Name, maxNameLength, true); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return apperror.Validation("unknown wallet kind")
	}
	if !w.Ownership.Valid() {
		return apperror.Validation("unknown wallet ownership")
	}
	if !w.Status.Valid() {
		return apperror.Validation("unknown wallet status")
	}
	if err := w.CheckOwnership(); err != nil {
		return apperror.Validation(err.Error())
	}
	return nil
}

func formatRef(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
