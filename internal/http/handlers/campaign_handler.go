package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/http/dto"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/smartzap/backend/internal/whatsapp"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	dispatchService *services.DispatchService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, dispatchService *services.DispatchService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, dispatchService: dispatchService, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	campaign := &models.Campaign{
		Name:         req.Name,
		TemplateName: req.TemplateName,
		ScheduledAt:  req.ScheduledAt,
	}
	if req.TemplateVariables != nil {
		campaign.TemplateVariables = *req.TemplateVariables
	}

	if err := h.campaignService.Create(c.Context(), campaign, dto.ContactModels(req.Contacts)); err != nil {
		return serviceError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	overview, err := h.campaignService.Overview(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: overview})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := repositories.CampaignFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	campaigns, err := h.campaignService.List(c.Context(), filter)
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) ListContacts(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	filter := repositories.ContactFilter{Limit: 100}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	contacts, err := h.campaignService.Contacts(c.Context(), id, filter)
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: contacts})
}

// Dispatch enqueues a send and returns as soon as the run is persisted.
func (h *CampaignHandler) Dispatch(c *fiber.Ctx) error {
	var req dto.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return badRequest(c, "invalid campaignId")
	}

	run, err := h.dispatchService.Enqueue(c.Context(), services.DispatchRequest{
		CampaignID:        campaignID,
		TemplateName:      req.TemplateName,
		Contacts:          dto.ContactModels(req.Contacts),
		TemplateVariables: req.TemplateVariables,
		PhoneNumberID:     req.PhoneNumberID,
		AccessToken:       req.AccessToken,
	})
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.DispatchResponse{
		Status:     run.Status,
		CampaignID: run.CampaignID.String(),
		RunID:      run.ID.String(),
		Count:      run.TotalContacts,
		Batches:    run.TotalBatches,
	})
}

func (h *CampaignHandler) PauseCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	if err := h.dispatchService.Pause(c.Context(), id); err != nil {
		return serviceError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CampaignHandler) ResumeCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	var req dto.ResumeCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	run, err := h.dispatchService.Resume(c.Context(), id, whatsapp.Credentials{
		PhoneNumberID: req.PhoneNumberID,
		AccessToken:   req.AccessToken,
	})
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.DispatchResponse{
		Status:     run.Status,
		CampaignID: run.CampaignID.String(),
		RunID:      run.ID.String(),
		Count:      run.TotalContacts,
		Batches:    run.TotalBatches,
	})
}

// DuplicateCampaign copies a campaign into a new DRAFT. ?failed=true copies
// only the failed recipients so they can be sent again.
func (h *CampaignHandler) DuplicateCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	copied, err := h.campaignService.Duplicate(c.Context(), id, c.QueryBool("failed"))
	if err != nil {
		return serviceError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: copied})
}
