package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/smartzap/backend/internal/workflow"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: int32(cfg.WorkerConcurrency) * 2,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	metrics.SetGlobal(m)

	// Repos
	campaignRepo := repositories.NewCampaignRepo(pool)
	contactRepo := repositories.NewCampaignContactRepo(pool)
	dispatchRepo := repositories.NewDispatchRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	settingsRepo := repositories.NewSettingsRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	waker := workflow.NewRedisWaker(rdb)
	credentials := services.NewSettingsCredentials(settingsRepo, whatsapp.Credentials{
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
	}, cfg.WebhookVerifyToken, log)
	dispatchService := services.NewDispatchService(services.DispatchDeps{
		Campaigns:   campaignRepo,
		Contacts:    contactRepo,
		Templates:   repositories.NewTemplateRepo(pool),
		Dispatch:    dispatchRepo,
		Sender:      whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, log),
		Credentials: credentials,
		Alerts:      services.NewAlertService(repositories.NewAlertRepo(pool), publisher, log),
		OptOut:      repositories.NewOptOutRepo(pool),
		Publisher:   publisher,
		Notifier:    waker,
		Audit:       auditRepo,
	}, services.DispatchConfig{
		BatchSize:        cfg.DispatchBatchSize,
		MaxAttempts:      cfg.DispatchMaxAttempts,
		MessageDelay:     cfg.DispatchMessageDelay,
		TemplateLanguage: cfg.TemplateLanguage,
		Lease:            cfg.WorkerLease,
	}, log)

	runner := workflow.NewRunner(dispatchRepo, dispatchService, waker, workflow.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		Lease:        cfg.WorkerLease,
		RetryBackoff: cfg.WorkerRetryBackoff,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           metricsMux(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("worker started", zap.String("metrics_addr", srv.Addr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		runScheduler(ctx, dispatchService, cfg.SchedulerInterval, log)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", zap.Error(err))
	}
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// runScheduler starts scheduled campaigns whose time has come.
func runScheduler(ctx context.Context, dispatchService *services.DispatchService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			started, err := dispatchService.StartDue(ctx, time.Now())
			if err != nil {
				log.Error("failed to start scheduled campaigns", zap.Error(err))
				continue
			}
			if started > 0 {
				log.Info("scheduled campaigns started", zap.Int("count", started))
			}
		case <-ctx.Done():
			return
		}
	}
}
