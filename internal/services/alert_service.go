package services

import (
	"context"
	"errors"

	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/whatsapp"
	"go.uber.org/zap"
)

type AlertService struct {
	alerts    AlertStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewAlertService(alerts AlertStore, publisher events.Publisher, log *zap.Logger) *AlertService {
	return &AlertService{alerts: alerts, publisher: publisher, log: log}
}

// Raise upserts the account alert for a critical classification. The alert
// id is derived from the code, so repeats refresh a single row.
func (s *AlertService) Raise(ctx context.Context, c whatsapp.Classification, details map[string]any) (*models.AccountAlert, error) {
	if details == nil {
		details = map[string]any{}
	}
	details["action"] = c.Action

	alert := &models.AccountAlert{
		ID:      models.AlertIDForCode(c.Code),
		Type:    c.Category,
		Code:    c.Code,
		Message: c.UserMessage,
		Details: details,
	}
	if err := s.alerts.Upsert(ctx, alert); err != nil {
		return nil, err
	}

	metrics.IncAlertRaised(c.Category)
	s.log.Warn("account alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("category", alert.Type),
		zap.Int("code", alert.Code),
	)
	_ = s.publisher.Publish(ctx, events.ChannelAlert, events.Event{
		Type: events.EventAlertRaised,
		Payload: map[string]any{
			"id":      alert.ID,
			"type":    alert.Type,
			"code":    alert.Code,
			"message": alert.Message,
			"action":  c.Action,
		},
	})
	return alert, nil
}

// DismissCategory closes every open alert of the category.
func (s *AlertService) DismissCategory(ctx context.Context, category string) error {
	n, err := s.alerts.DismissOpenByType(ctx, category)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("account alerts auto-dismissed", zap.String("category", category), zap.Int64("count", n))
		_ = s.publisher.Publish(ctx, events.ChannelAlert, events.Event{
			Type:    events.EventAlertDismissed,
			Payload: map[string]any{"type": category, "count": n},
		})
	}
	return nil
}

func (s *AlertService) List(ctx context.Context, includeDismissed bool) ([]models.AccountAlert, error) {
	return s.alerts.List(ctx, includeDismissed)
}

func (s *AlertService) Dismiss(ctx context.Context, id string) error {
	if err := s.alerts.Dismiss(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	_ = s.publisher.Publish(ctx, events.ChannelAlert, events.Event{
		Type:    events.EventAlertDismissed,
		Payload: map[string]any{"id": id},
	})
	return nil
}
