package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/erp/ledger/docs"
	appevent "github.com/erp/ledger/internal/application/event"
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/storage"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/erp/ledger/migrations"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//	@title			Ledger API
//	@version		1.0
//	@description	General ledger, payables and receivables, payments and bank reconciliation

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//go:generate swag init -g cmd/server/main.go -d ../.. -o ../../docs

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// pingFunc adapts a function to handler.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry providers are no-ops unless enabled. The logger provider goes first
	// so every later component logs through the bridge.
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	log = loggerProvider.Bridge(log)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()
	profiler, err := telemetry.NewProfiler(cfg.Profiling, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter("ledger")

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if err := migrateSchema(db, cfg.Database.Driver, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	if cfg.Telemetry.DBTraceEnabled {
		dbCfg := telemetry.DefaultDBConfig()
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		plugin, err := telemetry.NewDBPlugin(meter, dbCfg, log)
		if err != nil {
			log.Fatal("Failed to create database telemetry plugin", zap.Error(err))
		}
		if err := db.DB.Use(plugin); err != nil {
			log.Fatal("Failed to register database telemetry plugin", zap.Error(err))
		}
	}
	if reg, err := telemetry.RegisterPoolMetrics(db.DB, meter); err != nil {
		log.Warn("Connection pool metrics unavailable", zap.Error(err))
	} else {
		defer func() { _ = reg.Unregister() }()
	}

	// One unit table serves both line item input and loading stored documents
	units := valueobject.DefaultUnitRegistry()

	// Repositories
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	entryRepo := persistence.NewGormJournalEntryRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB, units)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	statementRepo := persistence.NewGormReconciliationRepository(db.DB)
	outboxRepo := persistence.NewGormOutboxRepository(db.DB)
	txm := persistence.NewGormTransactionManager(db.DB)

	// Events are saved to the outbox in the posting transaction and relayed to the bus
	serializer := event.NewLedgerSerializer(log)
	outboxPublisher := event.NewOutboxPublisher(outboxRepo, serializer, event.WithMaxRetries(cfg.Event.MaxRetries))

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter, log)
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Redis is optional: it backs rate limiting and the idempotency store
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory stores", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}
	idempotencyStore := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	defer func() { _ = idempotencyStore.Close() }()

	eventBus := event.NewInMemoryEventBus(log, event.WithPublishObserver(ledgerMetrics))
	metricsHandler := event.NewIdempotentHandler(ledgerMetrics, idempotencyStore, log)
	eventBus.Subscribe(metricsHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Event.ProcessorEnabled {
		processorConfig := event.OutboxProcessorConfigFrom(cfg.Event)
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorConfig, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
		)
	}

	// Application services
	tolerance, err := decimal.NewFromString(cfg.Ledger.VarianceTolerance)
	if err != nil {
		log.Fatal("Invalid variance tolerance", zap.String("value", cfg.Ledger.VarianceTolerance), zap.Error(err))
	}
	registry, err := infrastrategy.NewRegistryWithDefaults(cfg.Ledger.AllocationStrategy)
	if err != nil {
		log.Fatal("Failed to build strategy registry", zap.Error(err))
	}
	profile := ledgerapp.PostingProfile{
		AccountsPayable:    cfg.Ledger.Profile.AccountsPayable,
		AccountsReceivable: cfg.Ledger.Profile.AccountsReceivable,
		PurchaseDiscount:   cfg.Ledger.Profile.PurchaseDiscount,
		SalesDiscount:      cfg.Ledger.Profile.SalesDiscount,
	}
	opts := []ledgerapp.Option{
		ledgerapp.WithLogger(log),
		ledgerapp.WithMetrics(ledgerMetrics),
		ledgerapp.WithPostingRetries(cfg.Ledger.PostingRetries),
		ledgerapp.WithStatementDelimiter(cfg.Ledger.StatementDelimiterRune()),
		ledgerapp.WithUnitRegistry(units),
	}

	accountService := ledgerapp.NewAccountService(accountRepo, txm, outboxPublisher, cfg.Ledger.DefaultCurrency, opts...)
	journalService := ledgerapp.NewJournalService(entryRepo, accountRepo, txm, outboxPublisher, ledger.NewPostingEngine(), opts...)
	documentService := ledgerapp.NewDocumentService(documentRepo, entryRepo, accountRepo, txm, outboxPublisher, registry,
		ledgerapp.DocumentServiceConfig{
			DefaultCurrency:      cfg.Ledger.DefaultCurrency,
			PostDocumentPayments: cfg.Ledger.PostDocumentPayments,
			Profile:              profile,
			OverdueBatchSize:     cfg.Scheduler.OverdueBatchSize,
		}, opts...)
	paymentService := ledgerapp.NewPaymentService(paymentRepo, documentRepo, entryRepo, accountRepo, txm, outboxPublisher,
		registry, profile, opts...)
	reconciliationService := ledgerapp.NewReconciliationService(statementRepo, entryRepo, accountRepo, paymentRepo, txm,
		outboxPublisher, tolerance, cfg.Ledger.MatchWindowDays, opts...)
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	var reportStore ledgerapp.ReportStore = storage.NewMemoryReportStore()
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ReportStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create report store", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare report bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
		reportStore = s3Store
		log.Info("Report archive on object storage", zap.String("bucket", cfg.Storage.Bucket))
	}
	reportService := ledgerapp.NewReportService(journalService, accountRepo, entryRepo, statementRepo, reportStore, opts...)

	if cfg.Ledger.ChartSeedFile != "" {
		if err := seedChart(ctx, accountService, cfg.Ledger.ChartSeedFile, log); err != nil {
			log.Fatal("Failed to import chart of accounts", zap.String("file", cfg.Ledger.ChartSeedFile), zap.Error(err))
		}
	}

	// Background jobs
	if cfg.Scheduler.Enabled {
		executor := scheduler.NewLedgerJobExecutor(documentService, reportService, log)
		jobScheduler, err := scheduler.NewScheduler(scheduler.Config{
			MaxConcurrentJobs: scheduler.DefaultConfig().MaxConcurrentJobs,
			QueueSize:         scheduler.DefaultConfig().QueueSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, executor, log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := jobScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewCronTrigger(scheduler.TriggerConfig{
			SweepInterval:   cfg.Scheduler.OverdueSweepInterval,
			DailyExportHour: cfg.Scheduler.DailyExportHour,
		}, jobScheduler, log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start job trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping job trigger", zap.Error(err))
			}
		}()
		log.Info("Scheduler started",
			zap.Duration("overdue_sweep_interval", cfg.Scheduler.OverdueSweepInterval),
			zap.Int("daily_export_hour", cfg.Scheduler.DailyExportHour),
		)
	}

	// HTTP handlers
	checks := map[string]handler.Pinger{
		"database": pingFunc(func(context.Context) error { return db.Ping() }),
	}
	if redisClient != nil {
		checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	handlers := router.Handlers{
		Account:        handler.NewAccountHandler(accountService),
		Journal:        handler.NewJournalHandler(journalService),
		Document:       handler.NewDocumentHandler(documentService),
		Payment:        handler.NewPaymentHandler(paymentService),
		Reconciliation: handler.NewReconciliationHandler(reconciliationService),
		Report:         handler.NewReportHandler(reportService),
		Outbox:         handler.NewOutboxHandler(outboxService),
		System:         handler.NewSystemHandler(cfg.App.Name, version, checks),
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request id, panic recovery, tracing, request log,
	// security headers, CORS, body limit, metrics, rate limit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(meter))

	if cfg.HTTP.RateLimit != "" {
		rateLimiter, err := middleware.NewRateLimiter(cfg.HTTP.RateLimit, redisClient)
		if err != nil {
			log.Fatal("Invalid rate limit", zap.String("rate", cfg.HTTP.RateLimit), zap.Error(err))
		}
		engine.Use(middleware.RateLimit(rateLimiter, log))
		log.Info("Rate limiting enabled",
			zap.String("rate", cfg.HTTP.RateLimit),
			zap.Bool("shared", redisClient != nil),
		)
	}

	// Health check outside API versioning
	engine.GET("/health", handlers.System.Health)

	jwtService := auth.NewJWTService(cfg.JWT)
	router.MountSwagger(engine, middleware.SwaggerProtection(middleware.SwaggerConfig{
		Enabled:     cfg.HTTP.SwaggerEnabled,
		RequireAuth: cfg.HTTP.SwaggerRequireAuth,
		AllowedIPs:  cfg.HTTP.SwaggerAllowedIPs,
	}, middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		Required:   true,
		Logger:     log,
	})))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		Required:   cfg.JWT.Required,
		SkipPaths: []string{
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}))
	router.RegisterLedger(r, handlers, log).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the SQL migrations on postgres and falls back to
// AutoMigrate for sqlite
func migrateSchema(db *persistence.Database, driver string, log *zap.Logger) error {
	if driver != "postgres" {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}

func seedChart(ctx context.Context, accounts *ledgerapp.AccountService, path string, log *zap.Logger) error {
	seed, err := ledgerapp.LoadChartSeed(path)
	if err != nil {
		return err
	}
	result, err := accounts.ImportChart(ctx, seed)
	if err != nil {
		return err
	}
	log.Info("Chart of accounts imported",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return nil
}
