package whatsapp

import (
	"strconv"
	"time"
)

// Credentials identify the sending phone number and authorize Cloud API calls.
type Credentials struct {
	PhoneNumberID string
	AccessToken   string
}

func (c Credentials) Valid() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

// Send message structures

type MessageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         *TemplatePayload `json:"template,omitempty"`
}

type TemplatePayload struct {
	Name       string             `json:"name"`
	Language   Language           `json:"language"`
	Components []ComponentPayload `json:"components"`
}

type Language struct {
	Code string `json:"code"`
}

type ComponentPayload struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      *int        `json:"index,omitempty"`
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTemplateMessage assembles a template send. A component is included
// only when it has at least one resolved parameter.
func NewTemplateMessage(to, templateName, languageCode string, header, body, buttons []string) MessageRequest {
	components := []ComponentPayload{}
	if len(header) > 0 {
		components = append(components, ComponentPayload{Type: "header", Parameters: textParameters(header)})
	}
	if len(body) > 0 {
		components = append(components, ComponentPayload{Type: "body", Parameters: textParameters(body)})
	}
	if len(buttons) > 0 {
		index := 0
		components = append(components, ComponentPayload{
			Type:       "button",
			SubType:    "url",
			Index:      &index,
			Parameters: textParameters(buttons),
		})
	}

	return MessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &TemplatePayload{
			Name:       templateName,
			Language:   Language{Code: languageCode},
			Components: components,
		},
	}
}

func textParameters(values []string) []Parameter {
	params := make([]Parameter, 0, len(values))
	for _, v := range values {
		params = append(params, Parameter{Type: "text", Text: v})
	}
	return params
}

// Response structures

type SendResponse struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []ResponseContact `json:"contacts"`
	Messages         []ResponseMessage `json:"messages"`
	Error            *ErrorBody        `json:"error,omitempty"`
}

type ResponseContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

type ResponseMessage struct {
	ID string `json:"id"`
}

type ErrorBody struct {
	Message      string     `json:"message"`
	Type         string     `json:"type"`
	Code         int        `json:"code"`
	ErrorSubcode int        `json:"error_subcode"`
	ErrorData    *ErrorData `json:"error_data,omitempty"`
	FbtraceID    string     `json:"fbtrace_id"`
}

type ErrorData struct {
	Details string `json:"details"`
}

// Webhook structures

const ObjectWhatsAppBusinessAccount = "whatsapp_business_account"

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WebhookMetadata   `json:"metadata"`
	Contacts         []WebhookContact  `json:"contacts,omitempty"`
	Messages         []IncomingMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate    `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type IncomingMessage struct {
	From      string        `json:"from"`
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *IncomingText `json:"text,omitempty"`
	Button    *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`
	Interactive map[string]any `json:"interactive,omitempty"`
}

type IncomingText struct {
	Body string `json:"body"`
}

// BodyText returns the human readable part of the message when there is one.
func (m IncomingMessage) BodyText() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Button != nil:
		return m.Button.Text
	}
	return ""
}

type StatusUpdate struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code      int        `json:"code"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ErrorData *ErrorData `json:"error_data,omitempty"`
}

// ParseTimestamp converts the platform's unix seconds string, falling back
// to now when it is absent or malformed.
func ParseTimestamp(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now()
	}
	return time.Unix(secs, 0)
}
