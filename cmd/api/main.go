package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/events"
	apphttp "github.com/smartzap/backend/internal/http"
	"github.com/smartzap/backend/internal/http/handlers"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/smartzap/backend/internal/workflow"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if _, err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	metrics.SetGlobal(m)

	// Repositories
	campaignRepo := repositories.NewCampaignRepo(pool)
	contactRepo := repositories.NewCampaignContactRepo(pool)
	dispatchRepo := repositories.NewDispatchRepo(pool)
	templateRepo := repositories.NewTemplateRepo(pool)
	alertRepo := repositories.NewAlertRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	settingsRepo := repositories.NewSettingsRepo(pool)
	inboundRepo := repositories.NewInboundRepo(pool)
	optOutRepo := repositories.NewOptOutRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	credentials := services.NewSettingsCredentials(settingsRepo, whatsapp.Credentials{
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
	}, cfg.WebhookVerifyToken, log)
	alertService := services.NewAlertService(alertRepo, publisher, log)
	campaignService := services.NewCampaignService(campaignRepo, contactRepo, dispatchRepo, auditRepo, log)
	dispatchService := services.NewDispatchService(services.DispatchDeps{
		Campaigns:   campaignRepo,
		Contacts:    contactRepo,
		Templates:   templateRepo,
		Dispatch:    dispatchRepo,
		Sender:      whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, log),
		Credentials: credentials,
		Alerts:      alertService,
		OptOut:      optOutRepo,
		Publisher:   publisher,
		Notifier:    workflow.NewRedisWaker(rdb),
		Audit:       auditRepo,
	}, services.DispatchConfig{
		BatchSize:        cfg.DispatchBatchSize,
		MaxAttempts:      cfg.DispatchMaxAttempts,
		MessageDelay:     cfg.DispatchMessageDelay,
		TemplateLanguage: cfg.TemplateLanguage,
		Lease:            cfg.WorkerLease,
	}, log)
	webhookService := services.NewWebhookService(services.WebhookDeps{
		Campaigns: campaignRepo,
		Contacts:  contactRepo,
		Inbound:   inboundRepo,
		Alerts:    alertService,
		OptOut:    optOutRepo,
		Dedup:     services.NewRedisDuplicateGuard(rdb),
		Tokens:    credentials,
		Publisher: publisher,
	}, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	h := apphttp.Handlers{
		Auth:     handlers.NewAuthHandler(cfg, auditRepo, log),
		Campaign: handlers.NewCampaignHandler(campaignService, dispatchService, log),
		Alert:    handlers.NewAlertHandler(alertService, log),
		Webhook:  handlers.NewWebhookHandler(webhookService, cfg.WhatsAppAppSecret, log),
		WS:       wsHub,
	}

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: apphttp.ErrorHandler(log),
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
