package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/chat-escalation/internal/api/http"
	"github.com/spec-kit/chat-escalation/internal/api/http/handlers"
	"github.com/spec-kit/chat-escalation/internal/auth"
	"github.com/spec-kit/chat-escalation/internal/config"
	"github.com/spec-kit/chat-escalation/internal/escalation"
	"github.com/spec-kit/chat-escalation/internal/ingest"
	"github.com/spec-kit/chat-escalation/internal/observability"
	"github.com/spec-kit/chat-escalation/internal/persistence"
	"github.com/spec-kit/chat-escalation/internal/relay"
	"github.com/spec-kit/chat-escalation/internal/report"
	"github.com/spec-kit/chat-escalation/internal/repository"
	"github.com/spec-kit/chat-escalation/internal/service"
	"github.com/spec-kit/chat-escalation/internal/session"
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

	metrics := observability.NewMetrics()

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

	pool := pg.PoolHandle()
	tenantRepo := repository.NewCachedTenantRepository(
		repository.NewTenantRepository(pool), redis.Client, cfg.Redis.TenantCacheTTL, logger)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)

	notifier := buildRelay(cfg.Relay, logger)

	sessions := session.NewManager(session.Dependencies{
		TenantRepo: tenantRepo,
		Relay:      notifier,
		Logger:     logger,
		Metrics:    metrics,
	})

	engine := escalation.NewEngine(escalation.EngineDependencies{
		TenantRepo:       tenantRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		Status:           sessions,
		Relay:            notifier,
		Logger:           logger,
		Metrics:          metrics,
	})
	defer engine.Stop()

	aggregator := report.NewAggregator(report.AggregatorDependencies{
		TenantRepo:       tenantRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		Relay:            notifier,
		Logger:           logger,
		Metrics:          metrics,
	})

	var scheduler *report.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = report.NewScheduler(aggregator, tenantRepo, logger, cfg.Scheduler.DailyReportHour)
		if err := scheduler.Start(); err != nil {
			logger.Fatal("failed to start report scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	var consumer *ingest.Consumer
	if cfg.AMQP.Enabled() {
		consumer, err = ingest.NewConsumer(ctx, ingest.ConsumerDependencies{
			Config:   cfg.AMQP,
			Messages: engine,
			Sessions: sessions,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("failed to connect broker", zap.Error(err))
		}
		if err := consumer.Start(); err != nil {
			logger.Fatal("failed to start event consumer", zap.Error(err))
		}
		defer consumer.Close() //nolint:errcheck
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{OperatorRepo: operatorRepo})
	tenantService := service.NewTenantService(service.TenantDependencies{TenantRepo: tenantRepo})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Operators:      handlers.NewOperatorsHandler(authService),
		Tenants:        handlers.NewTenantsHandler(tenantService),
		Events:         handlers.NewEventsHandler(engine, sessions),
		Reports:        handlers.NewReportsHandler(aggregator),
		AuthMiddleware: authMiddleware,
		GatewayToken:   cfg.Auth.GatewayWebhookToken,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildRelay(cfg config.RelayConfig, logger *zap.Logger) relay.Relay {
	if cfg.TelegramBotToken == "" {
		logger.Warn("no telegram bot token configured, notifications go to the log")
		return relay.NewLogRelay(logger)
	}
	telegram, err := relay.NewTelegramRelay(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("failed to init telegram relay", zap.Error(err))
	}
	return telegram
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
