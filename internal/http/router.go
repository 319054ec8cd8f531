package http

import (
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/http/dto"
	"github.com/smartzap/backend/internal/http/handlers"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Campaign *handlers.CampaignHandler
	Alert    *handlers.AlertHandler
	Webhook  *handlers.WebhookHandler
	WS       *handlers.WSHub
}

// ErrorHandler renders errors that escaped a handler in the API error shape.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
			msg = "internal error"
		}
		return c.Status(code).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
	}
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log, "/health", "/metrics"))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// Meta webhook (verification + notifications), authenticated by signature
	app.Get("/api/webhook", h.Webhook.Verify)
	app.Post("/api/webhook", h.Webhook.Receive)

	api := app.Group("/api/v1")

	// Auth (public, rate limited)
	api.Post("/auth/login", middleware.RateLimitMiddleware(rdb, 10, time.Minute, log), h.Auth.Login)

	// Protected endpoints
	protected := api.Group("",
		middleware.AuthMiddleware(cfg, log),
		middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMin, time.Minute, log),
	)

	// Campaigns
	protected.Post("/campaigns", h.Campaign.CreateCampaign)
	protected.Get("/campaigns", h.Campaign.ListCampaigns)
	protected.Post("/campaigns/dispatch", h.Campaign.Dispatch)
	protected.Get("/campaigns/:id", h.Campaign.GetCampaign)
	protected.Get("/campaigns/:id/contacts", h.Campaign.ListContacts)
	protected.Post("/campaigns/:id/pause", h.Campaign.PauseCampaign)
	protected.Post("/campaigns/:id/resume", h.Campaign.ResumeCampaign)
	protected.Post("/campaigns/:id/duplicate", h.Campaign.DuplicateCampaign)

	// Account alerts
	protected.Get("/alerts", h.Alert.ListAlerts)
	protected.Post("/alerts/:id/dismiss", h.Alert.DismissAlert)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
