package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/smartzap/backend/internal/http/dto"
	"github.com/smartzap/backend/internal/whatsapp"
	"go.uber.org/zap"
)

// WebhookProcessor is what the webhook endpoints need from the reconciler.
type WebhookProcessor interface {
	Verify(ctx context.Context, mode, token, challenge string) (string, bool)
	HandleNotification(ctx context.Context, payload whatsapp.WebhookPayload)
}

type WebhookHandler struct {
	processor WebhookProcessor
	appSecret string
	log       *zap.Logger
}

func NewWebhookHandler(processor WebhookProcessor, appSecret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, appSecret: appSecret, log: log}
}

// Verify answers the platform's subscription handshake with the raw
// challenge.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	challenge, ok := h.processor.Verify(c.Context(), c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if !ok {
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// Receive processes a delivery. Once the payload is accepted the response is
// always 200 so the platform does not redeliver.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if !whatsapp.VerifySignature(h.appSecret, body, c.Get(whatsapp.SignatureHeader)) {
		h.log.Warn("webhook signature mismatch", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return badRequest(c, "invalid payload")
	}
	if payload.Object != whatsapp.ObjectWhatsAppBusinessAccount {
		return c.JSON(dto.WebhookAck{Status: "ignored"})
	}

	h.processor.HandleNotification(c.Context(), payload)
	return c.JSON(dto.WebhookAck{Status: "ok"})
}
