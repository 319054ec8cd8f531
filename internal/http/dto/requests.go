package dto

import (
	"time"

	"github.com/smartzap/backend/internal/models"
)

type LoginRequest struct {
	Password string `json:"password"`
}

// DispatchRequest is the body of POST /campaigns/dispatch. Field names follow
// the dashboard's camelCase payload.
type DispatchRequest struct {
	CampaignID        string                    `json:"campaignId"`
	TemplateName      string                    `json:"templateName"`
	Contacts          []DispatchContact         `json:"contacts"`
	TemplateVariables *models.TemplateVariables `json:"templateVariables,omitempty"`
	PhoneNumberID     string                    `json:"phoneNumberId,omitempty"`
	AccessToken       string                    `json:"accessToken,omitempty"`
}

type DispatchContact struct {
	ContactID    *string        `json:"contactId,omitempty"`
	Phone        string         `json:"phone"`
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

func (c DispatchContact) Model() models.DispatchContact {
	return models.DispatchContact{
		ContactID:    c.ContactID,
		Phone:        c.Phone,
		Name:         c.Name,
		Email:        c.Email,
		CustomFields: c.CustomFields,
	}
}

func ContactModels(in []DispatchContact) []models.DispatchContact {
	out := make([]models.DispatchContact, 0, len(in))
	for _, c := range in {
		out = append(out, c.Model())
	}
	return out
}

type CreateCampaignRequest struct {
	Name              string                    `json:"name"`
	TemplateName      string                    `json:"templateName"`
	TemplateVariables *models.TemplateVariables `json:"templateVariables,omitempty"`
	ScheduledAt       *time.Time                `json:"scheduledAt,omitempty"`
	Contacts          []DispatchContact         `json:"contacts,omitempty"`
}

type ResumeCampaignRequest struct {
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
}
