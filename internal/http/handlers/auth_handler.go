package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/smartzap/backend/internal/auth"
	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/http/dto"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg   *config.Config
	audit services.AuditLogger
	log   *zap.Logger
}

func NewAuthHandler(cfg *config.Config, audit services.AuditLogger, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, audit: audit, log: log}
}

// Login exchanges the master password for an operator JWT.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if h.cfg.MasterPassword == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "login is not configured"})
	}

	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Password == "" {
		return badRequest(c, "password is required")
	}

	if !auth.CheckPassword(h.cfg.MasterPassword, req.Password) {
		h.log.Warn("operator login failed", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid password"})
	}

	expiration := h.cfg.JWTExpiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	token, err := auth.GenerateJWT(h.cfg.JWTSecret, auth.RoleOperator, expiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	if h.audit != nil {
		_ = h.audit.Log(c.Context(), models.AuditLog{
			ActorType:  models.ActorOperator,
			Action:     "operator_login",
			EntityType: "session",
			Meta:       map[string]any{"ip": c.IP()},
		})
	}

	return c.JSON(dto.AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(expiration),
	})
}
