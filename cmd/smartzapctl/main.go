package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/smartzap/backend/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "smartzapctl",
	Short:        "SmartZap operator tool",
	Long:         `smartzapctl runs migrations, inspects campaigns and manages the WhatsApp settings of a SmartZap installation.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartzapctl %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// env holds the connections a command needs. Close releases them.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client
}

func openEnv(ctx context.Context, withRedis bool) (*env, error) {
	e := &env{cfg: config.Load(), log: newLogger()}

	pool, err := db.NewPostgresPool(ctx, e.cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1}, e.log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	e.pool = pool

	if withRedis {
		rdb, err := db.NewRedisClient(ctx, e.cfg.RedisURL, e.log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		e.rdb = rdb
	}
	return e, nil
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	e.pool.Close()
	_ = e.log.Sync()
}

func (e *env) credentials() *services.SettingsCredentials {
	return services.NewSettingsCredentials(repositories.NewSettingsRepo(e.pool), whatsapp.Credentials{
		PhoneNumberID: e.cfg.WhatsAppPhoneNumberID,
		AccessToken:   e.cfg.WhatsAppAccessToken,
	}, e.cfg.WebhookVerifyToken, e.log)
}

// dispatchService wires the same dispatcher the api uses; the env must have
// been opened with redis so that workers are woken up.
func (e *env) dispatchService() *services.DispatchService {
	publisher := events.NewRedisPublisher(e.rdb, e.log)
	return services.NewDispatchService(services.DispatchDeps{
		Campaigns:   repositories.NewCampaignRepo(e.pool),
		Contacts:    repositories.NewCampaignContactRepo(e.pool),
		Templates:   repositories.NewTemplateRepo(e.pool),
		Dispatch:    repositories.NewDispatchRepo(e.pool),
		Sender:      whatsapp.NewClient(e.cfg.WhatsAppAPIBaseURL, e.cfg.WhatsAppAPIVersion, e.log),
		Credentials: e.credentials(),
		Alerts:      services.NewAlertService(repositories.NewAlertRepo(e.pool), publisher, e.log),
		OptOut:      repositories.NewOptOutRepo(e.pool),
		Publisher:   publisher,
		Notifier:    workflow.NewRedisWaker(e.rdb),
		Audit:       repositories.NewAuditRepo(e.pool),
	}, services.DispatchConfig{
		BatchSize:        e.cfg.DispatchBatchSize,
		MaxAttempts:      e.cfg.DispatchMaxAttempts,
		MessageDelay:     e.cfg.DispatchMessageDelay,
		TemplateLanguage: e.cfg.TemplateLanguage,
		Lease:            e.cfg.WorkerLease,
	}, e.log)
}
