package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/lock"
	"wallet-ledger/internal/adapter/messaging/kafka"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"
	"wallet-ledger/pkg/metrics"
	"wallet-ledger/pkg/migrate"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// storageSet is what the ledger needs from a storage driver.
type storageSet struct {
	wallets     ports.WalletRepository
	txRepo      ports.TransactionRepository
	auditRepo   ports.AuditRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.DBTransactor
	health      []ports.HealthChecker
	close       func()
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("lock_backend", cfg.Ledger.LockBackend).
		Msg("Starting wallet ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer store.close()
	healthCheckers := store.health

	// Redis: idempotency fast path, rate limiting and the distributed lock.
	var (
		idemCache ports.IdempotencyCache
		rateStore middleware.RateLimitStore
		locker    ports.WalletLocker = lock.NewLocal(cfg.Ledger.LockTimeout)
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idemCache = redisStorage.NewIdempotencyCache(rdb)
		rateStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		if cfg.Ledger.LockBackend == config.LockBackendRedis {
			locker = redisStorage.NewWalletLocker(rdb, cfg.Ledger.LockTTL, cfg.Ledger.LockTimeout,
				logger.Component(log, "wallet-locker"))
		}
	}

	// Events
	var publisher ports.EventPublisher = kafka.Noop{}
	if cfg.Kafka.Enabled {
		p := kafka.NewPublisher(cfg.Kafka, logger.Component(log, "kafka"))
		defer func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("closing kafka publisher")
			}
		}()
		publisher = p
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}

	// Metrics
	var ledgerMetrics *metrics.LedgerMetrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		ledgerMetrics = metrics.NewLedgerMetrics(reg)
	}

	maxAmount, err := cfg.Ledger.MaxAmountDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger policy")
	}

	// Core services
	engine := service.NewLedgerEngine(service.LedgerEngineDeps{
		Wallets:        store.wallets,
		Transactions:   store.txRepo,
		Idempotency:    store.idempotency,
		Transactor:     store.transactor,
		Locker:         locker,
		Audit:          service.NewAuditTrail(store.auditRepo, logger.Component(log, "audit")),
		Cache:          idemCache,
		Publisher:      publisher,
		Metrics:        ledgerMetrics,
		Policy:         domain.AmountPolicy{Scale: cfg.Ledger.AmountScale, Max: maxAmount},
		IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		Log:            logger.Component(log, "ledger"),
	})
	query := service.NewQueryService(store.wallets, store.txRepo, store.auditRepo, store.transactor,
		service.Paging{DefaultSize: cfg.Ledger.DefaultPageSize, MaxSize: cfg.Ledger.MaxPageSize},
		logger.Component(log, "query"))
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         engine,
		Query:          query,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateStore,
		RateLimit:      int64(cfg.Server.RateLimit),
		HealthCheckers: healthCheckers,
		Metrics:        ledgerMetrics,
		AmountScale:    cfg.Ledger.AmountScale,
		PageSize:       cfg.Ledger.DefaultPageSize,
		MaxPageSize:    cfg.Ledger.MaxPageSize,
		Logger:         log,
	})

	// HTTP server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

// openStorage builds the repositories for the configured driver.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storageSet, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storageSet{
			wallets:     memory.NewWalletRepo(store),
			txRepo:      memory.NewTransactionRepo(store),
			auditRepo:   memory.NewAuditRepo(store),
			idempotency: memory.NewIdempotencyRepo(store),
			transactor:  store,
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(ctx, stdlib.OpenDBFromPool(pool)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Msg("Database migrations applied")
	}

	return &storageSet{
		wallets:     pgStorage.NewWalletRepo(),
		txRepo:      pgStorage.NewTransactionRepo(),
		auditRepo:   pgStorage.NewAuditRepo(),
		idempotency: pgStorage.NewIdempotencyRepo(),
		transactor:  pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout),
		health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:       pool.Close,
	}, nil
}
