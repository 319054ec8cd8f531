package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// APIError is a rejected send: either a non-2xx response or a 2xx response
// without a message id.
type APIError struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api returned %d: (#%d) %s", e.StatusCode, e.Code, e.Message)
}

type SendResult struct {
	MessageID string
	WaID      string
}

// Client talks to the WhatsApp Cloud API messages endpoint.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, version string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *Client) messagesURL(phoneNumberID string) string {
	return fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, phoneNumberID)
}

func (c *Client) SendTemplate(ctx context.Context, creds Credentials, msg MessageRequest) (*SendResult, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(creds.PhoneNumberID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp api unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}

	var data SendResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && len(data.Messages) > 0 && data.Messages[0].ID != "" {
		result := &SendResult{MessageID: data.Messages[0].ID}
		if len(data.Contacts) > 0 {
			result.WaID = data.Contacts[0].WaID
		}
		return result, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: "Unknown error"}
	if data.Error != nil {
		apiErr.Code = data.Error.Code
		apiErr.Type = data.Error.Type
		if data.Error.Message != "" {
			apiErr.Message = data.Error.Message
		}
		if data.Error.ErrorData != nil {
			apiErr.Details = data.Error.ErrorData.Details
		}
	}
	c.log.Debug("whatsapp send rejected",
		zap.String("to", msg.To),
		zap.Int("status", resp.StatusCode),
		zap.Int("code", apiErr.Code),
	)
	return nil, apiErr
}
