package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/smartzap/backend/internal/auth"
	"github.com/smartzap/backend/internal/config"
	"github.com/smartzap/backend/internal/http/dto"
	"go.uber.org/zap"
)

const CtxOperator = "operator"

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "missing authorization header", RequestID: GetRequestID(c)})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid authorization format", RequestID: GetRequestID(c)})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid or expired token", RequestID: GetRequestID(c)})
		}

		c.Locals(CtxOperator, claims.Subject)
		return c.Next()
	}
}

func GetOperator(c *fiber.Ctx) string {
	op, _ := c.Locals(CtxOperator).(string)
	return op
}
