package models

import (
	"fmt"
	"time"
)

// AccountAlert is an account wide problem raised by a critical send failure.
type AccountAlert struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Dismissed bool           `json:"dismissed"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AlertIDForCode derives the alert id from the provider error code so that
// repeated failures upsert a single row.
func AlertIDForCode(code int) string {
	return fmt.Sprintf("whatsapp_%d", code)
}

type OptOut struct {
	Phone     string    `json:"phone"`
	Code      int       `json:"code"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type InboundMessage struct {
	MessageID  string         `json:"message_id"`
	FromPhone  string         `json:"from_phone"`
	Type       string         `json:"type"`
	Body       string         `json:"body,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}
