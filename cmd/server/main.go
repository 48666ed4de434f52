package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rlgprojects/admission/internal/application"
	"github.com/rlgprojects/admission/internal/config"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/internal/infrastructure/advisor"
	"github.com/rlgprojects/admission/internal/infrastructure/audit"
	"github.com/rlgprojects/admission/internal/infrastructure/geo"
	"github.com/rlgprojects/admission/internal/infrastructure/load"
	"github.com/rlgprojects/admission/internal/infrastructure/monitoring"
	redisconn "github.com/rlgprojects/admission/internal/infrastructure/persistence/redis"
	"github.com/rlgprojects/admission/internal/infrastructure/secrets"
	"github.com/rlgprojects/admission/internal/infrastructure/store"
	httpiface "github.com/rlgprojects/admission/internal/interfaces/http"
	"github.com/rlgprojects/admission/internal/interfaces/http/handlers"
	"github.com/rlgprojects/admission/internal/interfaces/http/middleware"
	"github.com/rlgprojects/admission/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	logger.SetGlobalLogger(appLogger)

	ctx := context.Background()

	tracing, err := monitoring.NewTracingManager(cfg.Tracing, cfg.Server.Environment, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	metrics := monitoring.NewMetrics(nil)

	// Counter store: Redis when configured, otherwise process-local memory
	// suitable only for single-instance deployments.
	var counterStore service.CounterStore
	var storePinger handlers.Pinger
	if cfg.Redis.Addr != "" {
		conn := redisconn.NewConnection(cfg.Redis, appLogger)
		if err := conn.Connect(ctx); err != nil {
			appLogger.Fatal(ctx, "failed to connect to redis", err)
		}
		defer conn.Close()
		counterStore = store.NewRedisCounterStore(conn.Client(), appLogger)
		storePinger = conn
	} else {
		appLogger.Warn(ctx, "no redis configured, using in-memory counter store")
		memStore := store.NewMemoryCounterStore()
		defer memStore.Close()
		counterStore = memStore
	}

	secretProvider, err := buildSecretProvider(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize secret provider", err)
	}

	geoResolver, err := geo.NewStaticResolver(cfg.Geo.Networks, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to build geo resolver", err)
	}

	resolver, err := application.NewContextResolver(ctx, secretProvider, geoResolver,
		time.Duration(cfg.Geo.CacheTTLSeconds)*time.Second, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to build context resolver", err)
	}

	tracker := application.NewBehaviorTracker(counterStore, application.BehaviorTrackerConfig{
		Lookback:      cfg.Behavior.Lookback(),
		BaselineCount: cfg.Behavior.BaselineCount,
		Workers:       cfg.Behavior.Workers,
		Metrics:       metrics,
	}, appLogger)

	var limitAdvisor service.LimitAdvisor
	advisorID := "none"
	if cfg.Advisor.Enabled {
		httpAdvisor := advisor.NewHTTPAdvisor(cfg.Advisor.URL, cfg.Advisor.Timeout(), appLogger)
		limitAdvisor = httpAdvisor
		advisorID = httpAdvisor.Identity()
	}

	table := cfg.Limits.LimitTable()
	calculator := application.NewLimitCalculator(application.LimitCalculatorConfig{
		Table:          table,
		Advisor:        limitAdvisor,
		AdvisorTimeout: cfg.Advisor.Timeout(),
		OffHoursPolicy: cfg.Limits.OffHours(),
		LoadThreshold:  cfg.Limits.LoadThreshold,
	}, appLogger)

	var auditPublisher service.AuditPublisher
	if cfg.Audit.Enabled {
		auditPublisher = audit.NewKafkaPublisher(audit.KafkaPublisherConfig{
			Brokers: cfg.Audit.Brokers,
			Topic:   cfg.Audit.Topic,
		}, appLogger)
	} else {
		auditPublisher = audit.NewLogPublisher(appLogger)
	}
	defer auditPublisher.Close()

	gateway := application.NewAdmissionGateway(application.AdmissionGatewayConfig{
		Resolver:     resolver,
		Behavior:     tracker,
		Calculator:   calculator,
		Store:        counterStore,
		Load:         load.NewAtomicGauge(),
		Audit:        auditPublisher,
		Metrics:      metrics,
		Table:        table,
		StoreTimeout: cfg.Limits.StoreTimeout(),
		OffHours:     cfg.Limits.OffHours(),
		AdvisorID:    advisorID,
	}, appLogger)

	router := httpiface.NewRouter(
		cfg,
		appLogger,
		gateway,
		handlers.NewAdmissionHandler(gateway, appLogger),
		handlers.NewAdminHandler(gateway, appLogger),
		handlers.NewHealthHandler(storePinger),
		tracing.Tracer(),
		middleware.NewHTTPMetrics(nil),
	)

	go func() {
		if err := router.Start(); err != nil {
			appLogger.Fatal(context.Background(), "http server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "forced shutdown", err)
	}
}

func buildSecretProvider(cfg *config.Config, log logger.Logger) (service.SecretProvider, error) {
	if cfg.Secrets.Source == "vault" {
		return secrets.NewVaultProvider(secrets.VaultProviderConfig{
			Addr:  cfg.Secrets.VaultAddr,
			Token: cfg.Secrets.VaultToken,
			Path:  cfg.Secrets.VaultPath,
		}, log)
	}
	return secrets.NewEnvProvider(cfg.Secrets.KeySeed), nil
}
