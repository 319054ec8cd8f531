package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/smartzap/backend/internal/http/dto"
	"github.com/smartzap/backend/internal/services"
	"go.uber.org/zap"
)

type AlertHandler struct {
	alertService *services.AlertService
	log          *zap.Logger
}

func NewAlertHandler(alertService *services.AlertService, log *zap.Logger) *AlertHandler {
	return &AlertHandler{alertService: alertService, log: log}
}

// ListAlerts returns open alerts; ?all=true includes dismissed ones.
func (h *AlertHandler) ListAlerts(c *fiber.Ctx) error {
	alerts, err := h.alertService.List(c.Context(), c.QueryBool("all", false))
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: alerts})
}

func (h *AlertHandler) DismissAlert(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "invalid alert id")
	}
	if err := h.alertService.Dismiss(c.Context(), id); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
