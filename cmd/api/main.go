package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fixmypidge/case-service/internal/api/http"
	"github.com/fixmypidge/case-service/internal/api/http/handlers"
	"github.com/fixmypidge/case-service/internal/auth"
	"github.com/fixmypidge/case-service/internal/config"
	"github.com/fixmypidge/case-service/internal/events"
	"github.com/fixmypidge/case-service/internal/observability"
	"github.com/fixmypidge/case-service/internal/persistence"
	"github.com/fixmypidge/case-service/internal/repository"
	"github.com/fixmypidge/case-service/internal/service"
	"github.com/fixmypidge/case-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	minioClient, err := persistence.NewMinio(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to connect object storage", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	caseRepo := repository.NewCaseRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	photoRepo := repository.NewPhotoRepository(pool)
	inboundRepo := repository.NewInboundRepository(pool)

	var idemStore repository.IdempotencyStore
	if redis.Client != nil {
		idemStore = repository.NewRedisIdempotencyStore(redis.Client)
	} else {
		idemStore = repository.NewMemoryIdempotencyStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(userRepo, cfg.Auth)
	geocoder := service.NewMapboxGeocoder(cfg.Geocoding, logger)
	mediaService := service.NewMediaService(minioClient, cfg.Storage.Bucket, cfg.Storage.PublicURL)
	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:    caseRepo,
		MessageRepo: messageRepo,
		PhotoRepo:   photoRepo,
		Dispatcher:  dispatcher,
		Geocoder:    geocoder,
		Media:       mediaService,
	})
	webhookService := service.NewWebhookService(inboundRepo, idemStore, cfg.Webhook.DedupTTL(), logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Webhook)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Cases:          handlers.NewCasesHandler(caseService),
		Webhook:        handlers.NewWebhookHandler(webhookService),
		AuthMiddleware: authMiddleware,
		WebhookSecret:  cfg.Webhook.Secret,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
