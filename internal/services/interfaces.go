package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/whatsapp"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrInvalidTransition  = errors.New("invalid campaign status transition")
	ErrMissingCredentials = errors.New("whatsapp credentials are not configured")
)

// ValidationError is a rejected request payload.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetStatus(ctx context.Context, id uuid.UUID) (string, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
	MarkSending(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) (string, error)
	IncrementStat(ctx context.Context, id uuid.UUID, field string) error
	RaiseRecipients(ctx context.Context, id uuid.UUID, total int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error)
	Duplicate(ctx context.Context, srcID uuid.UUID, name string, onlyFailed bool) (*models.Campaign, error)
}

type ContactStore interface {
	EnsurePending(ctx context.Context, campaignID uuid.UUID, contacts []models.DispatchContact) error
	StatusesByPhone(ctx context.Context, campaignID uuid.UUID, phones []string) (map[string]string, error)
	ClaimForSend(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) (bool, error)
	ReleaseClaim(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) error
	FailStaleSending(ctx context.Context, taskID uuid.UUID, before time.Time, code int, reason string) (int64, error)
	MarkSent(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, messageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, code int, reason string, at time.Time) (bool, error)
	ListPending(ctx context.Context, campaignID uuid.UUID) ([]models.DispatchContact, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, f repositories.ContactFilter) ([]models.CampaignContact, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.CampaignContact, error)
	TransitionDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	TransitionRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	TransitionFailed(ctx context.Context, id uuid.UUID, at time.Time, code int, reason string) (bool, error)
}

type AlertStore interface {
	Upsert(ctx context.Context, a *models.AccountAlert) error
	DismissOpenByType(ctx context.Context, alertType string) (int64, error)
	Dismiss(ctx context.Context, id string) error
	List(ctx context.Context, includeDismissed bool) ([]models.AccountAlert, error)
}

type TemplateStore interface {
	GetByName(ctx context.Context, name string) (*models.Template, error)
}

type DispatchStore interface {
	CreateRun(ctx context.Context, run *models.DispatchRun, tasks []models.DispatchTask) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.DispatchRun, error)
	LatestRun(ctx context.Context, campaignID uuid.UUID) (*models.DispatchRun, error)
	ExtendLease(ctx context.Context, task *models.DispatchTask, lease time.Duration) (bool, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) (bool, error)
	CommitBatch(ctx context.Context, task *models.DispatchTask) (repositories.BatchTotals, bool, error)
	StopRun(ctx context.Context, runID uuid.UUID, status string) error
	FinishRun(ctx context.Context, runID uuid.UUID) error
}

type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type InboundStore interface {
	Save(ctx context.Context, m *models.InboundMessage) (bool, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type MessageSender interface {
	SendTemplate(ctx context.Context, creds whatsapp.Credentials, msg whatsapp.MessageRequest) (*whatsapp.SendResult, error)
}

type CredentialsProvider interface {
	Credentials(ctx context.Context) (whatsapp.Credentials, error)
}

type VerifyTokenSource interface {
	VerifyToken(ctx context.Context) string
}

// OptOutHook is told about recipients who refused marketing messages.
type OptOutHook interface {
	OptOut(ctx context.Context, phone string, code int, reason string) error
}

// DuplicateGuard remembers keys for a while. FirstSeen reports false for a
// key seen before; Forget drops a key so its event can be replayed.
type DuplicateGuard interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Notifier wakes the dispatch workers after work is enqueued.
type Notifier interface {
	Notify(ctx context.Context) error
}
