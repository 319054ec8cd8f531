package templatevars

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smartzap/backend/internal/models"
	"go.uber.org/zap"
)

// DefaultContactName replaces an empty contact name.
const DefaultContactName = "Cliente"

var (
	placeholderRe = regexp.MustCompile(`\{\{([\w\d_]+)\}\}`)
	numericSlotRe = regexp.MustCompile(`\{\{\d+\}\}`)
	// operator values may carry any {{...}} text, not only template slots
	anyTokenRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	tokenRe    = regexp.MustCompile(`^\{\{([^{}]*)\}\}$`)
)

// Resolved holds the parameter lists of one template send.
type Resolved struct {
	Header  []string
	Body    []string
	Buttons []string
}

type Resolver struct {
	log *zap.Logger
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log}
}

// Resolve builds the header, body and button parameters for a contact. The
// output never contains placeholder syntax: a value that cannot be resolved
// becomes an empty string.
func (r *Resolver) Resolve(tpl *models.Template, contact models.DispatchContact, vars models.TemplateVariables) Resolved {
	if tpl == nil || len(tpl.Components) == 0 {
		return Resolved{Body: r.legacyBody(contact, vars.Body)}
	}

	var out Resolved
	for _, component := range tpl.Components {
		switch c := component.(type) {
		case models.HeaderText:
			for idx, name := range placeholders(c.Text) {
				out.Header = append(out.Header, r.resolveSlot(contact, name, vars.Header, idx))
			}
		case models.BodyComponent:
			out.Body = append(out.Body, r.resolveBody(contact, c.Text, vars.Body)...)
		case models.ButtonsComponent:
			for btnIdx, button := range c.Buttons {
				url, ok := button.(models.URLButton)
				if !ok || !strings.Contains(url.URL, "{{") {
					continue
				}
				key := fmt.Sprintf("button_%d_0", btnIdx)
				for range numericSlotRe.FindAllString(url.URL, -1) {
					out.Buttons = append(out.Buttons, r.resolveValue(contact, vars.Buttons[key]))
				}
			}
		}
	}
	return out
}

func (r *Resolver) resolveBody(contact models.DispatchContact, text string, statics []string) []string {
	names := uniquePlaceholders(text)
	if len(names) == 0 {
		return nil
	}

	// Positional templates where the operator supplied every value except
	// the first: {{1}} is the contact name and statics fill {{2}} onward.
	offset := 0
	if names[0] == "1" && allNumeric(names) && len(statics) == len(names)-1 {
		offset = 1
	}

	values := make([]string, 0, len(names))
	for idx, name := range names {
		if offset == 1 && idx == 0 {
			values = append(values, contactName(contact))
			continue
		}
		values = append(values, r.resolveSlot(contact, name, statics, idx-offset))
	}
	return values
}

// resolveSlot takes the static value at idx when one exists, otherwise the
// placeholder itself is resolved as a token.
func (r *Resolver) resolveSlot(contact models.DispatchContact, name string, statics []string, idx int) string {
	if idx >= 0 && idx < len(statics) {
		return r.resolveValue(contact, statics[idx])
	}
	if isNumeric(name) {
		return ""
	}
	return r.resolveValue(contact, "{{"+name+"}}")
}

func (r *Resolver) legacyBody(contact models.DispatchContact, statics []string) []string {
	name := contactName(contact)
	values := []string{name}
	for _, raw := range statics {
		v := r.resolveValue(contact, raw)
		if v == name {
			continue
		}
		values = append(values, v)
	}
	return values
}

// resolveValue substitutes a whole-value token with contact data. Tokens
// embedded in longer text are substituted one by one.
func (r *Resolver) resolveValue(contact models.DispatchContact, raw string) string {
	m := tokenRe.FindStringSubmatch(raw)
	if m == nil {
		if !hasPlaceholder([]string{raw}) {
			return raw
		}
		return anyTokenRe.ReplaceAllStringFunc(raw, func(token string) string {
			return r.resolveValue(contact, token)
		})
	}
	return r.resolveToken(contact, strings.TrimSpace(m[1]))
}

// resolveToken maps a token name, with or without the contact. prefix, to
// contact data. Unknown names resolve to an empty string.
func (r *Resolver) resolveToken(contact models.DispatchContact, name string) string {
	field := strings.TrimPrefix(name, "contact.")
	switch field {
	case "nome", "name":
		return contactName(contact)
	case "telefone", "phone":
		return contact.Phone
	case "email":
		if contact.Email != "" {
			return contact.Email
		}
	}
	if v, ok := contact.CustomFields[field]; ok && v != nil {
		return fmt.Sprint(v)
	}
	if field != "email" {
		r.log.Warn("template variable not resolved for contact",
			zap.String("token", name),
			zap.String("phone", contact.Phone),
		)
	}
	return ""
}

func contactName(contact models.DispatchContact) string {
	if strings.TrimSpace(contact.Name) == "" {
		return DefaultContactName
	}
	return contact.Name
}

func placeholders(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func uniquePlaceholders(text string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range placeholders(text) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func allNumeric(names []string) bool {
	for _, n := range names {
		if !isNumeric(n) {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// hasPlaceholder reports whether any value still carries {{...}} text.
func hasPlaceholder(values ...[]string) bool {
	for _, list := range values {
		for _, v := range list {
			if anyTokenRe.MatchString(v) {
				return true
			}
		}
	}
	return false
}
