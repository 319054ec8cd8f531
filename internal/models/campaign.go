package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusScheduled = "SCHEDULED"
	CampaignStatusSending   = "SENDING"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusFailed    = "FAILED"
)

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusSending},
	CampaignStatusScheduled: {CampaignStatusDraft, CampaignStatusSending},
	CampaignStatusSending:   {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusFailed},
	CampaignStatusPaused:    {CampaignStatusSending},
	CampaignStatusCompleted: {},
	CampaignStatusFailed:    {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Counter columns that can be bumped atomically by the webhook path.
const (
	CampaignStatDelivered = "delivered"
	CampaignStatRead      = "read"
	CampaignStatFailed    = "failed"
)

func IsCampaignStat(field string) bool {
	switch field {
	case CampaignStatDelivered, CampaignStatRead, CampaignStatFailed:
		return true
	}
	return false
}

// TemplateVariables are the operator supplied static values, keyed the way
// the platform numbers template placeholders.
type TemplateVariables struct {
	Header  []string          `json:"header"`
	Body    []string          `json:"body"`
	Buttons map[string]string `json:"buttons,omitempty"`
}

type Campaign struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	TemplateName      string            `json:"template_name"`
	TemplateVariables TemplateVariables `json:"template_variables"`
	TotalRecipients   int               `json:"total_recipients"`
	Sent              int               `json:"sent"`
	Delivered         int               `json:"delivered"`
	Read              int               `json:"read"`
	Failed            int               `json:"failed"`
	ScheduledAt       *time.Time        `json:"scheduled_at,omitempty"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// FinalStatus is the status the completion step assigns given current counters.
func (c *Campaign) FinalStatus() string {
	if c.TotalRecipients > 0 && c.Failed == c.TotalRecipients {
		return CampaignStatusFailed
	}
	return CampaignStatusCompleted
}
