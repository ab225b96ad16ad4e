package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves centre-wide reports and the audit trail.
type ReportHandler struct {
	query       ports.QueryService
	view        dto.View
	defaultSize int
	maxSize     int
}

// NewReportHandler creates a new ReportHandler. The page sizes must match
// the query service's so the paging echoed to clients is accurate.
func NewReportHandler(query ports.QueryService, view dto.View, defaultSize, maxSize int) *ReportHandler {
	return &ReportHandler{query: query, view: view, defaultSize: defaultSize, maxSize: maxSize}
}

// CentreSummary handles GET /api/v1/reports/centre-summary.
func (h *ReportHandler) CentreSummary(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p, err := period(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sum, err := h.query.CentreSummary(c.Request.Context(), a, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view.ToCentreSummary(sum, p))
}

// Activity handles GET /api/v1/reports/activity.
func (h *ReportHandler) Activity(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p, err := period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size, err := h.paging(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	q := ports.ActivityQuery{Period: p, Page: page, PageSize: size}
	items, total, err := h.query.CentreActivity(c.Request.Context(), a, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, h.view.ToTransactions(items), page, size, total)
}

// AuditLog handles GET /api/v1/audit-logs.
func (h *ReportHandler) AuditLog(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	centreID, err := queryInt64(c, "centre_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	staffID, err := queryInt64(c, "actor_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size, err := h.paging(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, total, err := h.query.AuditLog(c.Request.Context(), a, ports.AuditQuery{
		CentreID:     centreID,
		ActorStaffID: staffID,
		Period:       p,
		Page:         page,
		PageSize:     size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, dto.ToAuditEntries(entries), page, size, total)
}

// paging resolves page and page_size against the configured bounds.
func (h *ReportHandler) paging(c *gin.Context) (int, int, error) {
	page, size, err := paging(c)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = h.defaultSize
	}
	if h.maxSize > 0 && size > h.maxSize {
		size = h.maxSize
	}
	return page, size, nil
}
