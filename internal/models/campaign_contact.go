package models

import (
	"time"

	"github.com/google/uuid"
)

// Per-recipient statuses
const (
	ContactStatusPending   = "pending"
	ContactStatusSending   = "sending"
	ContactStatusSent      = "sent"
	ContactStatusDelivered = "delivered"
	ContactStatusRead      = "read"
	ContactStatusFailed    = "failed"
)

// ContactStatusOrder is the progression used to drop duplicate and out of
// order webhook events.
var ContactStatusOrder = map[string]int{
	ContactStatusPending:   0,
	ContactStatusSending:   0,
	ContactStatusSent:      1,
	ContactStatusDelivered: 2,
	ContactStatusRead:      3,
	ContactStatusFailed:    4,
}

// ShouldApplyStatus reports whether an incoming status may be applied over
// the current one. failed always passes the gate, even over read: the
// provider reports late failures and they are kept. The storage layer still
// refuses a second failed transition.
func ShouldApplyStatus(current, next string) bool {
	if next == ContactStatusFailed {
		return true
	}
	nextOrder, ok := ContactStatusOrder[next]
	if !ok {
		return false
	}
	return nextOrder > ContactStatusOrder[current]
}

// DispatchContact is a recipient as carried by a dispatch request.
type DispatchContact struct {
	ContactID    *string        `json:"contact_id,omitempty"`
	Phone        string         `json:"phone"`
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type CampaignContact struct {
	ID             uuid.UUID      `json:"id"`
	CampaignID     uuid.UUID      `json:"campaign_id"`
	ContactID      *string        `json:"contact_id,omitempty"`
	Phone          string         `json:"phone"`
	Name           string         `json:"name"`
	Email          *string        `json:"email,omitempty"`
	CustomFields   map[string]any `json:"custom_fields,omitempty"`
	Status         string         `json:"status"`
	MessageID      *string        `json:"message_id,omitempty"`
	DispatchTaskID *uuid.UUID     `json:"-"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	FailedAt       *time.Time     `json:"failed_at,omitempty"`
	FailureCode    *int           `json:"failure_code,omitempty"`
	FailureReason  *string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (c *CampaignContact) AsDispatchContact() DispatchContact {
	dc := DispatchContact{
		ContactID:    c.ContactID,
		Phone:        c.Phone,
		Name:         c.Name,
		CustomFields: c.CustomFields,
	}
	if c.Email != nil {
		dc.Email = *c.Email
	}
	return dc
}

// StatusEvent is one entry of a webhook delivery's statuses array.
type StatusEvent struct {
	MessageID    string
	Status       string
	RecipientID  string
	ErrorCode    int
	ErrorTitle   string
	ErrorDetails string
	Timestamp    time.Time
}
