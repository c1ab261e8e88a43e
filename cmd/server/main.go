package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/provider"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/cache"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/http"
	stripeProvider "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/usecase/billing"
	pkglogger "github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/logger"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/messaging"
	"go.uber.org/zap"
)

const (
	stripeHTTPTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := pkglogger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
		zap.String("version", cfg.Service.Version),
	)

	db, err := database.NewConnection(&cfg.Database, cfg.Service.Environment == "development", logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, logger)

	stripeAPI := stripeProvider.NewAPI(cfg.Stripe.SecretKey, cfg.Stripe.APIURL,
		&http.Client{Timeout: stripeHTTPTimeout}, logger)
	var lookup provider.Lookup = stripeProvider.NewLookupClient(stripeAPI, logger)

	// Redis is optional: without it there is no activity fan-out and no lookup cache
	var publisher messaging.RedisClient
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Warn("Redis unavailable, continuing without fan-out and lookup cache",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = redisClient.Close()
		} else {
			publisher = messaging.NewRedisClientFrom(redisClient)
			defer publisher.Close()
			if cfg.Stripe.LookupCacheTTL > 0 {
				lookup = cache.NewLookupCache(lookup, cache.NewRedisStore(redisClient), cfg.Stripe.LookupCacheTTL, logger)
			}
			logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	recorder := billing.NewRecorder(repos.Activity, publisher, logger)
	handlers := billing.NewHandlers(billing.HandlerDeps{
		Accounts:           repos.Account,
		Lookup:             lookup,
		Recorder:           recorder,
		Logger:             logger,
		RecordUnassociated: cfg.Webhook.RecordUnassociated,
	})
	router := billing.NewRouter(handlers.Routes(), logger)
	processor := billing.NewProcessor(repos.Webhook, router, cfg.Webhook.DedupeEvents, logger)
	replayer := billing.NewReplayer(repos.Webhook, processor, stripeProvider.ParseNotification, billing.ReplayerConfig{
		Interval:    cfg.Webhook.ReplayInterval,
		BatchSize:   cfg.Webhook.ReplayBatch,
		MaxAttempts: cfg.Webhook.MaxAttempts,
	}, logger)

	logger.Info("Billing event routes registered", zap.Strings("event_types", router.Types()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		replayer.Run(ctx)
	}()

	httpSrv := httpServer.NewServer(cfg, logger, httpServer.Dependencies{
		Verifier:   stripeProvider.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance, logger),
		Processor:  processor,
		Activities: repos.Activity,
	})
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	var grpcSrv *grpcServer.Server
	if cfg.Server.GRPC.Port > 0 {
		grpcSrv = grpcServer.NewServer(cfg, logger)
		go func() {
			if err := grpcSrv.Start(); err != nil {
				logger.Fatal("Failed to start gRPC server", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if grpcSrv != nil {
		grpcSrv.SetServing(false)
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	cancel()
	<-replayDone

	if grpcSrv != nil {
		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown gRPC server", zap.Error(err))
		}
	}

	logger.Info("Servers shut down successfully")
}
