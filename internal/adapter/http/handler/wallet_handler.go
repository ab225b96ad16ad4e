package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WalletHandler serves wallet management, movements and per-wallet reads.
type WalletHandler struct {
	ledger ports.LedgerService
	query  ports.QueryService
	view   dto.View
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService, query ports.QueryService, view dto.View) *WalletHandler {
	return &WalletHandler{ledger: ledger, query: query, view: view}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	initial := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		if initial, err = domain.ParseAmount(req.InitialBalance); err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
	}

	w, err := h.ledger.CreateWallet(c.Request.Context(), a, ports.CreateWalletRequest{
		CentreID:        req.CentreID,
		Name:            req.Name,
		Kind:            domain.WalletKind(req.Kind),
		Ownership:       domain.WalletOwnership(req.Ownership),
		AssignedStaffID: req.AssignedStaffID,
		Status:          domain.WalletStatus(req.Status),
		InitialBalance:  initial,
		AllowOverdraft:  req.AllowOverdraft,
		IdempotencyKey:  idempotencyKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view.ToWallet(w))
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	centreID, err := queryInt64(c, "centre_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := ports.WalletFilter{CentreID: centreID}
	if s := c.Query("status"); s != "" {
		status := domain.WalletStatus(s)
		filter.Status = &status
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.WalletKind(k)
		filter.Kind = &kind
	}
	if filter.AssignedStaffID, err = queryInt64(c, "assigned_staff_id"); err != nil {
		response.Error(c, err)
		return
	}

	wallets, err := h.query.ListWallets(c.Request.Context(), a, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToWallets(wallets))
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	w, err := h.query.GetWallet(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToWallet(w))
}

// Update handles PATCH /api/v1/wallets/:id.
func (h *WalletHandler) Update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	patch := ports.WalletPatch{
		Name:            req.Name,
		AssignedStaffID: req.AssignedStaffID,
		AllowOverdraft:  req.AllowOverdraft,
	}
	if req.Kind != nil {
		k := domain.WalletKind(*req.Kind)
		patch.Kind = &k
	}
	if req.Status != nil {
		s := domain.WalletStatus(*req.Status)
		patch.Status = &s
	}
	if req.Ownership != nil {
		o := domain.WalletOwnership(*req.Ownership)
		patch.Ownership = &o
	}

	w, err := h.ledger.UpdateWallet(c.Request.Context(), a, id, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToWallet(w))
}

// Recharge handles POST /api/v1/wallets/:id/recharge.
func (h *WalletHandler) Recharge(c *gin.Context) {
	h.move(c, h.ledger.Recharge)
}

// Debit handles POST /api/v1/wallets/:id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.move(c, h.ledger.Debit)
}

type movementFunc func(ctx context.Context, actor ports.Actor, req ports.MovementRequest) (*ports.MovementResult, error)

func (h *WalletHandler) move(c *gin.Context, fn movementFunc) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	res, err := fn(c.Request.Context(), a, ports.MovementRequest{
		WalletID:       id,
		Amount:         amount,
		Category:       req.Category,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view.ToMovement(res))
}

// History handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) History(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size, err := paging(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var newestFirst bool
	switch c.DefaultQuery("order", "asc") {
	case "asc":
	case "desc":
		newestFirst = true
	default:
		response.Error(c, apperror.Validation("order must be asc or desc"))
		return
	}

	hp, err := h.query.History(c.Request.Context(), a, ports.HistoryQuery{
		WalletID:    id,
		Period:      p,
		NewestFirst: newestFirst,
		Page:        page,
		PageSize:    size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, h.view.ToHistory(hp), hp.Page, hp.PageSize, hp.Total)
}

// Summary handles GET /api/v1/wallets/:id/summary.
func (h *WalletHandler) Summary(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := period(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sum, err := h.query.WalletSummary(c.Request.Context(), a, id, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToWalletSummary(sum, p))
}

// Reconcile handles GET /api/v1/wallets/:id/reconciliation.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.query.Reconcile(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToReconciliation(rec))
}
