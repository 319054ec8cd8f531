package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Template struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	Category   string              `json:"category"`
	Language   string              `json:"language"`
	Status     string              `json:"status"`
	Components []TemplateComponent `json:"-"`
	CreatedAt  time.Time           `json:"created_at"`
}

// TemplateComponent is one of HeaderText, HeaderMedia, HeaderLocation,
// BodyComponent, FooterComponent, ButtonsComponent or UnsupportedComponent.
type TemplateComponent interface {
	templateComponent()
}

type HeaderText struct{ Text string }

// HeaderMedia covers IMAGE, VIDEO and DOCUMENT headers.
type HeaderMedia struct{ Format string }

type HeaderLocation struct{}

type BodyComponent struct{ Text string }

type FooterComponent struct{ Text string }

type ButtonsComponent struct{ Buttons []TemplateButton }

type UnsupportedComponent struct{ Type string }

func (HeaderText) templateComponent()           {}
func (HeaderMedia) templateComponent()          {}
func (HeaderLocation) templateComponent()       {}
func (BodyComponent) templateComponent()        {}
func (FooterComponent) templateComponent()      {}
func (ButtonsComponent) templateComponent()     {}
func (UnsupportedComponent) templateComponent() {}

// TemplateButton is one of URLButton, QuickReplyButton, PhoneNumberButton,
// CopyCodeButton or OtherButton.
type TemplateButton interface {
	templateButton()
}

type URLButton struct {
	Text string
	URL  string
}

type QuickReplyButton struct{ Text string }

type PhoneNumberButton struct {
	Text        string
	PhoneNumber string
}

type CopyCodeButton struct{ Text string }

type OtherButton struct {
	Type string
	Text string
}

func (URLButton) templateButton()         {}
func (QuickReplyButton) templateButton()  {}
func (PhoneNumberButton) templateButton() {}
func (CopyCodeButton) templateButton()    {}
func (OtherButton) templateButton()       {}

type rawTemplateButton struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	PhoneNumber string `json:"phone_number"`
}

type rawTemplateComponent struct {
	Type    string              `json:"type"`
	Format  string              `json:"format"`
	Text    string              `json:"text"`
	Buttons []rawTemplateButton `json:"buttons"`
}

// ParseTemplateComponents decodes the platform's component JSON into typed
// components. An empty or null document yields no components.
func ParseTemplateComponents(raw []byte) ([]TemplateComponent, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var items []rawTemplateComponent
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode template components: %w", err)
	}

	components := make([]TemplateComponent, 0, len(items))
	for _, item := range items {
		switch strings.ToUpper(item.Type) {
		case "HEADER":
			switch strings.ToUpper(item.Format) {
			case "", "TEXT":
				components = append(components, HeaderText{Text: item.Text})
			case "LOCATION":
				components = append(components, HeaderLocation{})
			default:
				components = append(components, HeaderMedia{Format: strings.ToUpper(item.Format)})
			}
		case "BODY":
			components = append(components, BodyComponent{Text: item.Text})
		case "FOOTER":
			components = append(components, FooterComponent{Text: item.Text})
		case "BUTTONS":
			buttons := make([]TemplateButton, 0, len(item.Buttons))
			for _, b := range item.Buttons {
				buttons = append(buttons, parseTemplateButton(b))
			}
			components = append(components, ButtonsComponent{Buttons: buttons})
		default:
			components = append(components, UnsupportedComponent{Type: item.Type})
		}
	}
	return components, nil
}

func parseTemplateButton(b rawTemplateButton) TemplateButton {
	switch strings.ToUpper(b.Type) {
	case "URL":
		return URLButton{Text: b.Text, URL: b.URL}
	case "QUICK_REPLY":
		return QuickReplyButton{Text: b.Text}
	case "PHONE_NUMBER":
		return PhoneNumberButton{Text: b.Text, PhoneNumber: b.PhoneNumber}
	case "COPY_CODE":
		return CopyCodeButton{Text: b.Text}
	default:
		return OtherButton{Type: b.Type, Text: b.Text}
	}
}
