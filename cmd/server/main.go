package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	callbackapp "github.com/orderbridge/backend/internal/application/callback"
	menusyncapp "github.com/orderbridge/backend/internal/application/menusync"
	ordersyncapp "github.com/orderbridge/backend/internal/application/ordersync"
	"github.com/orderbridge/backend/internal/infrastructure/auth"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/crypto"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/metrics"
	"github.com/orderbridge/backend/internal/infrastructure/persistence"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/platform"
	"github.com/orderbridge/backend/internal/infrastructure/pos"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
	"github.com/orderbridge/backend/internal/interfaces/http/handler"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
	"github.com/orderbridge/backend/internal/interfaces/http/router"
)

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

	log.Info("Starting orderbridge backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with zap-backed GORM logging and tenant scoping callbacks
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	tenant.EnableAutoTenantFilter(db.DB, true)
	tenantDB := tenant.NewTenantDB(db.DB)
	log.Info("Database connected")

	// Redis for platform token caching
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	// Credential encryption
	cipher, err := crypto.NewCipher(cfg.Crypto.Key)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	credentialRepo := persistence.NewGormCredentialRepository(tenantDB)
	credentialStore := persistence.NewEncryptedCredentialStore(credentialRepo, cipher)
	orderRepo := persistence.NewGormOrderRepository(tenantDB)
	posSyncRepo := persistence.NewGormPOSSyncRepository(tenantDB)
	mappingRepo := persistence.NewGormMappingRepository(tenantDB)
	menuRepo := persistence.NewGormMenuRepository(tenantDB)
	linkRepo := persistence.NewGormLinkRepository(tenantDB)
	syncLogRepo := persistence.NewGormSyncLogRepository(tenantDB)
	webhookLogRepo := persistence.NewGormWebhookLogRepository(tenantDB)
	jobRepo := queue.NewRepository(db.DB)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// Platform adapters
	tokenCache := platform.NewRedisTokenCache(redisClient)
	careemAdapter := platform.NewCareemAdapter(&cfg.Careem, credentialStore, tokenCache)
	talabatAdapter := platform.NewTalabatAdapter(&cfg.Talabat, credentialStore)
	registryAdapters := platform.NewAdapterRegistry(careemAdapter, talabatAdapter)

	// POS gateway
	posClient := pos.NewClient(&cfg.POS, credentialStore)

	// Application services
	ingestService := ordersyncapp.NewIngestService(registryAdapters, orderRepo, mappingRepo, syncLogRepo, jobRepo, m)
	posSyncService := ordersyncapp.NewPOSSyncService(orderRepo, posSyncRepo, syncLogRepo, tenantRepo, posClient, cfg.Sync)
	menuSyncService := menusyncapp.NewSyncService(registryAdapters, menuRepo, linkRepo, syncLogRepo, tenantRepo, jobRepo, cfg.Sync, m)
	reconciler := callbackapp.NewReconciler(registryAdapters, linkRepo, syncLogRepo, m)

	// Job dispatcher
	dispatcher := queue.NewDispatcher(jobRepo, queue.Config{
		Workers:      cfg.Queue.Workers,
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
		LeaseTimeout: cfg.Queue.LeaseTimeout,
	}, log)
	dispatcher.SetObserver(m)
	dispatcher.Register(queue.JobOrderIngest, ingestService.HandleIngest)
	dispatcher.Register(queue.JobOrderPOSSync, posSyncService.HandlePOSSync)
	dispatcher.Register(queue.JobMenuSync, menuSyncService.HandleMenuSync)
	dispatcher.RegisterFailureHook(queue.JobOrderIngest, ingestService.HandleIngestFailure)
	dispatcher.RegisterFailureHook(queue.JobOrderPOSSync, posSyncService.HandleSyncFailure)
	dispatcher.RegisterFailureHook(queue.JobMenuSync, menuSyncService.HandleSyncFailure)

	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job dispatcher", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			log.Error("Error stopping job dispatcher", zap.Error(err))
		}
	}()

	// Auth for the admin API
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP surface
	middleware.SetupValidator()
	handlers := router.Handlers{
		Webhook:    handler.NewWebhookHandler(ingestService, webhookLogRepo),
		Callback:   handler.NewCallbackHandler(reconciler),
		Sync:       handler.NewSyncHandler(menuSyncService, ingestService),
		Mapping:    handler.NewMappingHandler(mappingRepo),
		Credential: handler.NewCredentialHandler(credentialStore),
		System:     handler.NewSystemHandler(db, redisClient, jobRepo),
	}
	engine := router.New(router.Deps{
		Config:     cfg,
		Logger:     log,
		JWTService: jwtService,
		Tenants:    tenantRepo,
		Registry:   registry,
	}, handlers)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
