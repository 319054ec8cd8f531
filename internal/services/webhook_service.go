package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/whatsapp"
	"go.uber.org/zap"
)

// Webhook outcomes, used as the metrics outcome label.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeUnknown   = "unknown"
	OutcomeIgnored   = "ignored"
	OutcomeError     = "error"
)

type WebhookDeps struct {
	Campaigns CampaignStore
	Contacts  ContactStore
	Inbound   InboundStore
	Alerts    *AlertService
	OptOut    OptOutHook
	Dedup     DuplicateGuard
	Tokens    VerifyTokenSource
	Publisher events.Publisher
}

// WebhookService reconciles delivery statuses reported by the platform with
// the campaign contact rows and counters.
type WebhookService struct {
	campaigns CampaignStore
	contacts  ContactStore
	inbound   InboundStore
	alerts    *AlertService
	optOut    OptOutHook
	dedup     DuplicateGuard
	tokens    VerifyTokenSource
	publisher events.Publisher
	log       *zap.Logger
}

func NewWebhookService(deps WebhookDeps, log *zap.Logger) *WebhookService {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	return &WebhookService{
		campaigns: deps.Campaigns,
		contacts:  deps.Contacts,
		inbound:   deps.Inbound,
		alerts:    deps.Alerts,
		optOut:    deps.OptOut,
		dedup:     deps.Dedup,
		tokens:    deps.Tokens,
		publisher: deps.Publisher,
		log:       log,
	}
}

// Verify answers the platform's subscription handshake.
func (s *WebhookService) Verify(ctx context.Context, mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || token == "" {
		return "", false
	}
	expected := ""
	if s.tokens != nil {
		expected = s.tokens.VerifyToken(ctx)
	}
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		s.log.Warn("webhook verification failed", zap.String("mode", mode))
		return "", false
	}
	return challenge, true
}

// HandleNotification processes every status and inbound message of a
// delivery. Failures of one entry are logged and do not stop the others.
func (s *WebhookService) HandleNotification(ctx context.Context, payload whatsapp.WebhookPayload) {
	if payload.Object != whatsapp.ObjectWhatsAppBusinessAccount {
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				ev := statusEventFrom(st)
				if err := s.HandleStatus(ctx, ev); err != nil {
					s.log.Error("failed to process status update",
						zap.String("message_id", ev.MessageID),
						zap.String("status", ev.Status),
						zap.Error(err),
					)
				}
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if err := s.handleInbound(ctx, msg, names[msg.From]); err != nil {
					s.log.Error("failed to store inbound message",
						zap.String("message_id", msg.ID),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func statusEventFrom(st whatsapp.StatusUpdate) models.StatusEvent {
	ev := models.StatusEvent{
		MessageID:   st.ID,
		Status:      st.Status,
		RecipientID: st.RecipientID,
		Timestamp:   whatsapp.ParseTimestamp(st.Timestamp),
	}
	if len(st.Errors) > 0 {
		e := st.Errors[0]
		ev.ErrorCode = e.Code
		ev.ErrorTitle = e.Title
		ev.ErrorDetails = e.Message
		if e.ErrorData != nil && e.ErrorData.Details != "" {
			ev.ErrorDetails = e.ErrorData.Details
		}
	}
	return ev
}

// HandleStatus applies one status event. Unknown message ids, stale events
// and exact replays are dropped without error.
func (s *WebhookService) HandleStatus(ctx context.Context, ev models.StatusEvent) error {
	switch ev.Status {
	case models.ContactStatusDelivered, models.ContactStatusRead, models.ContactStatusFailed:
	default:
		// sent is already recorded by the dispatcher
		metrics.IncWebhookEvent(ev.Status, OutcomeIgnored)
		return nil
	}
	if ev.MessageID == "" {
		metrics.IncWebhookEvent(ev.Status, OutcomeIgnored)
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	key := statusDedupKey(ev.MessageID, ev.Status)
	if s.dedup != nil {
		first, err := s.dedup.FirstSeen(ctx, key)
		if err != nil {
			s.log.Warn("webhook dedup unavailable", zap.Error(err))
		} else if !first {
			metrics.IncWebhookEvent(ev.Status, OutcomeDuplicate)
			return nil
		}
	}

	outcome, err := s.applyStatus(ctx, ev)
	if err != nil {
		metrics.IncWebhookEvent(ev.Status, OutcomeError)
		if s.dedup != nil {
			if ferr := s.dedup.Forget(ctx, key); ferr != nil {
				s.log.Warn("failed to release webhook dedup key", zap.String("key", key), zap.Error(ferr))
			}
		}
		return err
	}
	metrics.IncWebhookEvent(ev.Status, outcome)
	return nil
}

func (s *WebhookService) applyStatus(ctx context.Context, ev models.StatusEvent) (string, error) {
	contact, err := s.contacts.GetByMessageID(ctx, ev.MessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Debug("status for unknown message", zap.String("message_id", ev.MessageID))
			return OutcomeUnknown, nil
		}
		return "", err
	}

	if !models.ShouldApplyStatus(contact.Status, ev.Status) {
		s.log.Debug("stale status ignored",
			zap.String("message_id", ev.MessageID),
			zap.String("current", contact.Status),
			zap.String("incoming", ev.Status),
		)
		return OutcomeStale, nil
	}

	var applied bool
	var stat string
	switch ev.Status {
	case models.ContactStatusDelivered:
		applied, err = s.contacts.TransitionDelivered(ctx, contact.ID, ev.Timestamp)
		stat = models.CampaignStatDelivered
	case models.ContactStatusRead:
		applied, err = s.contacts.TransitionRead(ctx, contact.ID, ev.Timestamp)
		stat = models.CampaignStatRead
	case models.ContactStatusFailed:
		c := whatsapp.Classify(ev.ErrorCode)
		applied, err = s.contacts.TransitionFailed(ctx, contact.ID, ev.Timestamp, ev.ErrorCode, c.UserMessage)
		stat = models.CampaignStatFailed
	}
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeStale, nil
	}

	if err := s.campaigns.IncrementStat(ctx, contact.CampaignID, stat); err != nil {
		return "", err
	}

	log := s.log.With(
		zap.String("campaign_id", contact.CampaignID.String()),
		zap.String("message_id", ev.MessageID),
	)
	log.Info("status applied", zap.String("status", ev.Status))

	switch ev.Status {
	case models.ContactStatusDelivered:
		if s.alerts != nil {
			if err := s.alerts.DismissCategory(ctx, whatsapp.CategoryPayment); err != nil {
				log.Warn("failed to dismiss payment alerts", zap.Error(err))
			}
		}
	case models.ContactStatusFailed:
		s.handleFailure(ctx, log, contact, ev)
	}

	_ = s.publisher.Publish(ctx, events.ChannelCampaign, events.Event{
		Type: events.EventCampaignStatsChanged,
		Payload: map[string]any{
			"campaign_id": contact.CampaignID,
			"phone":       contact.Phone,
			"status":      ev.Status,
		},
	})
	return OutcomeApplied, nil
}

func (s *WebhookService) handleFailure(ctx context.Context, log *zap.Logger, contact *models.CampaignContact, ev models.StatusEvent) {
	c := whatsapp.Classify(ev.ErrorCode)
	metrics.IncMessagesFailed(c.Category)
	log.Info("delivery failed",
		zap.String("phone", contact.Phone),
		zap.String("reason", whatsapp.FormatFailureReason(ev.ErrorCode)),
		zap.String("details", ev.ErrorDetails),
	)

	if c.Critical && s.alerts != nil {
		_, err := s.alerts.Raise(ctx, c, map[string]any{
			"title":       ev.ErrorTitle,
			"details":     ev.ErrorDetails,
			"campaign_id": contact.CampaignID,
			"phone":       contact.Phone,
		})
		if err != nil {
			log.Error("failed to raise account alert", zap.Int("code", ev.ErrorCode), zap.Error(err))
		}
	}
	if c.OptOut && s.optOut != nil {
		if err := s.optOut.OptOut(ctx, contact.Phone, ev.ErrorCode, c.UserMessage); err != nil {
			log.Error("failed to record opt-out", zap.String("phone", contact.Phone), zap.Error(err))
		}
	}
}

func (s *WebhookService) handleInbound(ctx context.Context, msg whatsapp.IncomingMessage, profileName string) error {
	if s.inbound == nil || msg.ID == "" {
		return nil
	}

	in := &models.InboundMessage{
		MessageID:  msg.ID,
		FromPhone:  msg.From,
		Type:       msg.Type,
		Body:       msg.BodyText(),
		ReceivedAt: whatsapp.ParseTimestamp(msg.Timestamp),
	}
	switch {
	case msg.Button != nil:
		in.Payload = map[string]any{"button_payload": msg.Button.Payload}
	case msg.Interactive != nil:
		in.Payload = msg.Interactive
	}

	inserted, err := s.inbound.Save(ctx, in)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	_ = s.publisher.Publish(ctx, events.ChannelInbox, events.Event{
		Type: events.EventInboundMessage,
		Payload: map[string]any{
			"message_id": in.MessageID,
			"from":       in.FromPhone,
			"name":       profileName,
			"type":       in.Type,
			"body":       in.Body,
		},
	})
	return nil
}
