package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/restoflow/restoflow-backend/internal/stock/consumers"
	"github.com/restoflow/restoflow-backend/internal/stock/events"
	"github.com/restoflow/restoflow-backend/internal/stock/handler"
	"github.com/restoflow/restoflow-backend/internal/stock/repository"
	"github.com/restoflow/restoflow-backend/internal/stock/repository/memstore"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/auth"
	"github.com/restoflow/restoflow-backend/pkg/cache"
	"github.com/restoflow/restoflow-backend/pkg/config"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/lock"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/restoflow/restoflow-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

const serviceName = "stock-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Str("store", cfg.Stock.Store).Msg("starting Stock Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]func(context.Context) map[string]string{}

	// Batch ledger storage
	var (
		stores  service.Stores
		catalog consumers.CatalogWriter
	)
	switch cfg.Stock.Store {
	case config.StoreMemory:
		mem := memstore.New()
		stores = mem.Stores()
		catalog = mem.Catalog()
		log.Warn().Msg("using in-memory stock store; data is lost on restart")
	default:
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		stores = repository.NewStores(db)
		catalog = repository.NewCatalogRepository(db)
		health["database"] = db.Health
	}

	// Redis backs the quantity cache and the sweep lock when configured
	var (
		cacheStore cache.Store
		locker     lock.Locker
	)
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()
		redisStore := cache.NewRedisStore(client, cfg.Redis.KeyPrefix)
		cacheStore = redisStore
		locker = lock.NewRedisLocker(client, cfg.Redis.KeyPrefix+"lock:")
		health["redis"] = redisStore.Health
	} else {
		memStore := cache.NewMemoryStore()
		memStore.StartJanitor(ctx, time.Minute)
		cacheStore = memStore
		locker = lock.NewLocalLocker()
		health["cache"] = memStore.Health
		log.Info().Msg("Redis not configured, using process-local cache and sweep lock")
	}

	// RabbitMQ carries stock events out and catalog events in
	var publisher service.EventPublisher
	if !cfg.RabbitMQ.Disabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		stockEvents, err := events.NewStockEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = stockEvents

		catalogConsumer, err := consumers.NewCatalogEventConsumer(rmq, catalog, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create catalog event consumer")
		}
		if err := catalogConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start catalog event consumer")
		}
		rmq.Watch(ctx, catalogConsumer.Start)

		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }
	} else {
		log.Warn().Msg("RabbitMQ disabled, stock events are not published")
	}

	// Services
	clock := service.SystemClock{}
	quantities := service.NewQuantityCache(
		cache.New[decimal.Decimal](cacheStore, "stock:qty:", cfg.Stock.CacheTTL),
		log,
	)
	monitor := service.NewMonitor(stores, quantities, publisher, clock, cfg.Stock.ExpiringSoonDays, log)
	aggregator := service.NewAggregator(stores, monitor, quantities, publisher, clock, log)
	ledger := service.NewLedger(stores, monitor, quantities, aggregator, publisher, clock, log)
	imports := service.NewImportProcessor(stores, ledger, quantities, aggregator, publisher, clock, log)
	exports := service.NewExportAllocator(stores, ledger, monitor, quantities, aggregator, publisher, clock,
		service.AllocatorConfig{
			MaxRetries:   cfg.Stock.AllocationMaxRetries,
			RetryBackoff: cfg.Stock.AllocationRetryBackoff,
		}, log)
	alerts := service.NewAlertService(stores, clock)
	scheduler := service.NewSweepScheduler(monitor, aggregator, locker, cfg.Stock.SweepInterval, cfg.Stock.SweepLockTTL, log)

	handlers := &handler.Handlers{
		Imports: handler.NewImportHandler(imports, log),
		Exports: handler.NewExportHandler(exports, log),
		Batches: handler.NewBatchHandler(ledger, log),
		Stock:   handler.NewStockHandler(aggregator, log),
		Alerts:  handler.NewAlertHandler(alerts, scheduler, log),
	}

	// Create router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"service": serviceName,
		}
		for name, check := range health {
			body[name] = check(r.Context())
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	authManager := auth.NewManager(&cfg.JWT)

	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Use(httputil.Authenticate(authManager))
		if cfg.RateLimit.Enabled {
			limit, err := httputil.RateLimit(cfg.RateLimit.Rate)
			if err != nil {
				log.Fatal().Err(err).Str("rate", cfg.RateLimit.Rate).Msg("invalid rate limit")
			}
			r.Use(limit)
		}
		handlers.RegisterRoutes(r)
	})

	scheduler.Start(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the sweep first; it waits for a running cycle
	scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
