package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler serves POST /api/v1/transfers.
type TransferHandler struct {
	ledger ports.LedgerService
	view   dto.View
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(ledger ports.LedgerService, view dto.View) *TransferHandler {
	return &TransferHandler{ledger: ledger, view: view}
}

// Transfer moves money between two wallets of the caller's centre.
func (h *TransferHandler) Transfer(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
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

	res, err := h.ledger.Transfer(c.Request.Context(), a, ports.TransferRequest{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view.ToTransfer(res))
}
