package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"go.uber.org/zap"
)

type CampaignService struct {
	campaigns CampaignStore
	contacts  ContactStore
	dispatch  DispatchStore
	audit     AuditLogger
	now       func() time.Time
	log       *zap.Logger
}

func NewCampaignService(
	campaigns CampaignStore,
	contacts ContactStore,
	dispatch DispatchStore,
	audit AuditLogger,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		contacts:  contacts,
		dispatch:  dispatch,
		audit:     audit,
		now:       time.Now,
		log:       log,
	}
}

// Create stores a DRAFT campaign, or a SCHEDULED one when scheduled_at lies
// in the future. Contacts given here are stored as pending recipients.
func (s *CampaignService) Create(ctx context.Context, c *models.Campaign, contacts []models.DispatchContact) error {
	c.Name = strings.TrimSpace(c.Name)
	c.TemplateName = strings.TrimSpace(c.TemplateName)
	if c.Name == "" {
		return &ValidationError{Msg: "name is required"}
	}
	if c.TemplateName == "" {
		return &ValidationError{Msg: "templateName is required"}
	}
	for i := range contacts {
		contacts[i].Phone = strings.TrimSpace(contacts[i].Phone)
		if contacts[i].Phone == "" {
			return &ValidationError{Msg: "contact phone is required"}
		}
	}

	c.Status = models.CampaignStatusDraft
	if c.ScheduledAt != nil {
		if !c.ScheduledAt.After(s.now()) {
			return &ValidationError{Msg: "scheduledAt must be in the future"}
		}
		c.Status = models.CampaignStatusScheduled
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return err
	}
	if len(contacts) > 0 {
		if err := s.contacts.EnsurePending(ctx, c.ID, contacts); err != nil {
			return err
		}
		if err := s.campaigns.RaiseRecipients(ctx, c.ID, len(contacts)); err != nil {
			return err
		}
		c.TotalRecipients = len(contacts)
	}

	if s.audit != nil {
		_ = s.audit.Log(ctx, models.AuditLog{
			ActorType:  models.ActorOperator,
			Action:     "campaign_created",
			EntityType: "campaign",
			EntityID:   &c.ID,
			Meta:       map[string]any{"status": c.Status, "recipients": len(contacts)},
		})
	}
	s.log.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("status", c.Status),
	)
	return nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	return s.campaigns.List(ctx, f)
}

func (s *CampaignService) Contacts(ctx context.Context, id uuid.UUID, f repositories.ContactFilter) ([]models.CampaignContact, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.contacts.ListByCampaign(ctx, id, f)
}

// Duplicate copies a campaign into a new DRAFT with its recipients reset to
// pending. With onlyFailed just the failed recipients are copied, which is
// how failed sends are retried: counters of a campaign never go down.
func (s *CampaignService) Duplicate(ctx context.Context, id uuid.UUID, onlyFailed bool) (*models.Campaign, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if onlyFailed {
		failed := models.ContactStatusFailed
		rows, err := s.contacts.ListByCampaign(ctx, id, repositories.ContactFilter{Status: &failed, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, &ValidationError{Msg: "campaign has no failed recipients"}
		}
	}

	copied, err := s.campaigns.Duplicate(ctx, id, src.Name+" (Cópia)", onlyFailed)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Log(ctx, models.AuditLog{
			ActorType:  models.ActorOperator,
			Action:     "campaign_duplicated",
			EntityType: "campaign",
			EntityID:   &copied.ID,
			Meta: map[string]any{
				"source_id":   id,
				"only_failed": onlyFailed,
				"recipients":  copied.TotalRecipients,
			},
		})
	}
	s.log.Info("campaign duplicated",
		zap.String("source_id", id.String()),
		zap.String("campaign_id", copied.ID.String()),
		zap.Int("recipients", copied.TotalRecipients),
		zap.Bool("only_failed", onlyFailed),
	)
	return copied, nil
}

// CampaignOverview is a campaign with its most recent dispatch run, if any.
type CampaignOverview struct {
	Campaign  *models.Campaign    `json:"campaign"`
	LatestRun *models.DispatchRun `json:"latest_run,omitempty"`
}

func (s *CampaignService) Overview(ctx context.Context, id uuid.UUID) (*CampaignOverview, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ov := &CampaignOverview{Campaign: c}
	run, err := s.dispatch.LatestRun(ctx, id)
	switch {
	case err == nil:
		ov.LatestRun = run
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, err
	}
	return ov, nil
}
