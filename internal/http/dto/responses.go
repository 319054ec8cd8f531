package dto

import "time"

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// DispatchResponse acknowledges an enqueued dispatch.
type DispatchResponse struct {
	Status     string `json:"status"`
	CampaignID string `json:"campaignId"`
	RunID      string `json:"runId"`
	Count      int    `json:"count"`
	Batches    int    `json:"batches"`
}

type WebhookAck struct {
	Status string `json:"status"`
}
