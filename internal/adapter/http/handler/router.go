package handler

import (
	"net/http"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	Query          ports.QueryService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	RateLimit      int64                     // requests per staff member per minute
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.LedgerMetrics // nil = no /metrics endpoint
	AmountScale    int32
	PageSize       int
	MaxPageSize    int
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error_code": "SYS_404", "message": "route not found"})
	})

	rules := middleware.DefaultRateLimitRules(deps.RateLimit)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil || deps.RateLimit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}
	write, read := rl("ledger_write"), rl("ledger_read")

	v1 := r.Group("/api/v1", middleware.StaffAuth(deps.TokenSvc, deps.Logger))
	view := dto.View{Scale: deps.AmountScale}

	walletHandler := NewWalletHandler(deps.Ledger, deps.Query, view)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", write, walletHandler.Create)
		wallets.GET("", read, walletHandler.List)
		wallets.GET("/:id", read, walletHandler.Get)
		wallets.PATCH("/:id", write, walletHandler.Update)
		wallets.POST("/:id/recharge", write, walletHandler.Recharge)
		wallets.POST("/:id/debit", write, walletHandler.Debit)
		wallets.GET("/:id/transactions", read, walletHandler.History)
		wallets.GET("/:id/summary", read, walletHandler.Summary)
		wallets.GET("/:id/reconciliation", read, walletHandler.Reconcile)
	}

	transferHandler := NewTransferHandler(deps.Ledger, view)
	v1.POST("/transfers", write, transferHandler.Transfer)

	reportHandler := NewReportHandler(deps.Query, view, deps.PageSize, deps.MaxPageSize)
	reports := v1.Group("/reports")
	{
		reports.GET("/centre-summary", read, reportHandler.CentreSummary)
		reports.GET("/activity", read, reportHandler.Activity)
	}
	v1.GET("/audit-logs", read, reportHandler.AuditLog)

	return r
}
