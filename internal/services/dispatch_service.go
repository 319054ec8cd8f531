package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/metrics"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/templatevars"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/smartzap/backend/internal/workflow"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type DispatchConfig struct {
	BatchSize        int
	MaxAttempts      int
	MessageDelay     time.Duration
	TemplateLanguage string
	// Lease is renewed before every contact of a batch. It must outlast
	// one provider call plus the send delay.
	Lease time.Duration
}

// interruptedReason is stored on contacts whose sender died between the
// claim and the provider answer.
const interruptedReason = "Envio interrompido antes da confirmação da Meta."

// DispatchRequest is an operator request to send a campaign to contacts.
// Empty credentials are filled from settings.
type DispatchRequest struct {
	CampaignID        uuid.UUID
	TemplateName      string
	Contacts          []models.DispatchContact
	TemplateVariables *models.TemplateVariables
	PhoneNumberID     string
	AccessToken       string
}

type DispatchDeps struct {
	Campaigns   CampaignStore
	Contacts    ContactStore
	Templates   TemplateStore
	Dispatch    DispatchStore
	Sender      MessageSender
	Credentials CredentialsProvider
	Alerts      *AlertService
	OptOut      OptOutHook
	Resolver    *templatevars.Resolver
	Publisher   events.Publisher
	Notifier    Notifier
	Audit       AuditLogger
}

type DispatchService struct {
	campaigns   CampaignStore
	contacts    ContactStore
	templates   TemplateStore
	dispatch    DispatchStore
	sender      MessageSender
	credentials CredentialsProvider
	alerts      *AlertService
	optOut      OptOutHook
	resolver    *templatevars.Resolver
	publisher   events.Publisher
	notifier    Notifier
	audit       AuditLogger
	cfg         DispatchConfig
	now         func() time.Time
	log         *zap.Logger
}

func NewDispatchService(deps DispatchDeps, cfg DispatchConfig, log *zap.Logger) *DispatchService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 40
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.TemplateLanguage == "" {
		cfg.TemplateLanguage = "pt_BR"
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Resolver == nil {
		deps.Resolver = templatevars.NewResolver(log)
	}
	return &DispatchService{
		campaigns:   deps.Campaigns,
		contacts:    deps.Contacts,
		templates:   deps.Templates,
		dispatch:    deps.Dispatch,
		sender:      deps.Sender,
		credentials: deps.Credentials,
		alerts:      deps.Alerts,
		optOut:      deps.OptOut,
		resolver:    deps.Resolver,
		publisher:   deps.Publisher,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		cfg:         cfg,
		now:         time.Now,
		log:         log,
	}
}

func validateDispatch(req *DispatchRequest) error {
	if req.CampaignID == uuid.Nil {
		return &ValidationError{Msg: "campaignId is required"}
	}
	req.TemplateName = strings.TrimSpace(req.TemplateName)

	// a phone is one recipient per campaign; later duplicates are dropped
	seen := make(map[string]struct{}, len(req.Contacts))
	contacts := make([]models.DispatchContact, 0, len(req.Contacts))
	for i, c := range req.Contacts {
		c.Phone = strings.TrimSpace(c.Phone)
		if c.Phone == "" {
			return &ValidationError{Msg: fmt.Sprintf("contacts[%d].phone is required", i)}
		}
		if _, dup := seen[c.Phone]; dup {
			continue
		}
		seen[c.Phone] = struct{}{}
		contacts = append(contacts, c)
	}
	req.Contacts = contacts
	return nil
}

// Enqueue validates a dispatch request and persists a run with its task
// chain. The campaign must not be PAUSED or finished. A request without
// contacts sends to the campaign's stored pending recipients.
func (s *DispatchService) Enqueue(ctx context.Context, req DispatchRequest) (*models.DispatchRun, error) {
	if err := validateDispatch(&req); err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	switch campaign.Status {
	case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusSending:
	default:
		return nil, fmt.Errorf("%w: cannot dispatch a %s campaign", ErrInvalidTransition, campaign.Status)
	}

	creds := whatsapp.Credentials{PhoneNumberID: req.PhoneNumberID, AccessToken: req.AccessToken}
	if !creds.Valid() {
		if creds, err = s.credentials.Credentials(ctx); err != nil {
			return nil, err
		}
	}

	templateName := req.TemplateName
	if templateName == "" {
		templateName = campaign.TemplateName
	}
	if templateName == "" {
		return nil, &ValidationError{Msg: "templateName is required"}
	}
	vars := campaign.TemplateVariables
	if req.TemplateVariables != nil {
		vars = *req.TemplateVariables
	}

	contacts := req.Contacts
	if len(contacts) == 0 {
		if contacts, err = s.contacts.ListPending(ctx, campaign.ID); err != nil {
			return nil, err
		}
	}
	return s.enqueueRun(ctx, campaign.ID, templateName, vars, creds, contacts)
}

func (s *DispatchService) enqueueRun(ctx context.Context, campaignID uuid.UUID, templateName string, vars models.TemplateVariables, creds whatsapp.Credentials, contacts []models.DispatchContact) (*models.DispatchRun, error) {
	if err := s.contacts.EnsurePending(ctx, campaignID, contacts); err != nil {
		return nil, fmt.Errorf("store campaign contacts: %w", err)
	}
	if err := s.campaigns.RaiseRecipients(ctx, campaignID, len(contacts)); err != nil {
		return nil, fmt.Errorf("update recipients: %w", err)
	}

	run := &models.DispatchRun{
		ID:                uuid.New(),
		CampaignID:        campaignID,
		TemplateName:      templateName,
		TemplateVariables: vars,
		PhoneNumberID:     creds.PhoneNumberID,
		AccessToken:       creds.AccessToken,
		Status:            models.RunStatusQueued,
	}
	tasks := models.BuildTaskChain(run, contacts, s.cfg.BatchSize, s.cfg.MaxAttempts)
	if err := s.dispatch.CreateRun(ctx, run, tasks); err != nil {
		return nil, fmt.Errorf("create dispatch run: %w", err)
	}

	s.log.Info("dispatch enqueued",
		zap.String("campaign_id", campaignID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("contacts", run.TotalContacts),
		zap.Int("batches", run.TotalBatches),
	)
	s.auditLog(ctx, models.ActorOperator, "dispatch_enqueued", campaignID, map[string]any{
		"run_id":   run.ID,
		"contacts": run.TotalContacts,
		"template": templateName,
	})

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil {
			s.log.Warn("failed to wake dispatch workers", zap.Error(err))
		}
	}
	return run, nil
}

// Execute routes a claimed task to its step. It implements workflow.Executor.
func (s *DispatchService) Execute(ctx context.Context, task *models.DispatchTask) error {
	run, err := s.dispatch.GetRun(ctx, task.RunID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return workflow.Permanent(fmt.Errorf("dispatch run %s not found", task.RunID))
		}
		return err
	}

	switch task.Kind {
	case models.TaskKindInit:
		return s.InitCampaign(ctx, run, task)
	case models.TaskKindSendBatch:
		return s.SendBatch(ctx, run, task)
	case models.TaskKindComplete:
		return s.CompleteCampaign(ctx, run, task)
	default:
		return workflow.Permanent(fmt.Errorf("unknown task kind %q", task.Kind))
	}
}

// InitCampaign moves the campaign to SENDING. A campaign that was paused or
// finished in the meantime stops the run.
func (s *DispatchService) InitCampaign(ctx context.Context, run *models.DispatchRun, task *models.DispatchTask) error {
	ok, err := s.campaigns.MarkSending(ctx, run.CampaignID)
	if err != nil {
		return err
	}

	if !ok {
		status, err := s.campaigns.GetStatus(ctx, run.CampaignID)
		if err != nil {
			return err
		}
		runStatus := models.RunStatusFailed
		if status == models.CampaignStatusPaused {
			runStatus = models.RunStatusPaused
		}
		s.log.Info("campaign cannot start, stopping run",
			zap.String("campaign_id", run.CampaignID.String()),
			zap.String("status", status),
		)
		if _, err := s.dispatch.CompleteTask(ctx, task.ID); err != nil {
			return err
		}
		return s.dispatch.StopRun(ctx, run.ID, runStatus)
	}

	s.publishStatus(ctx, run.CampaignID, models.CampaignStatusSending)
	s.log.Info("campaign started",
		zap.String("campaign_id", run.CampaignID.String()),
		zap.Int("contacts", run.TotalContacts),
	)
	return s.completeTask(ctx, task)
}

// SendBatch sends the task's contacts one by one and commits the outcome.
// A PAUSED campaign stops the batch; unprocessed contacts stay pending.
// Each contact is claimed before its send, and the lease is renewed before
// each claim, so an attempt that lost its lease stops without committing.
func (s *DispatchService) SendBatch(ctx context.Context, run *models.DispatchRun, task *models.DispatchTask) error {
	log := s.log.With(
		zap.String("campaign_id", run.CampaignID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("batch", task.BatchIndex),
	)

	if err := s.contacts.EnsurePending(ctx, run.CampaignID, task.Contacts); err != nil {
		return err
	}
	if task.Attempts > 1 {
		n, err := s.contacts.FailStaleSending(ctx, task.ID, s.now().Add(-s.cfg.Lease), 0, interruptedReason)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Warn("contacts interrupted mid send marked failed", zap.Int64("contacts", n))
		}
	}
	phones := make([]string, 0, len(task.Contacts))
	for _, c := range task.Contacts {
		phones = append(phones, c.Phone)
	}
	statuses, err := s.contacts.StatusesByPhone(ctx, run.CampaignID, phones)
	if err != nil {
		return err
	}

	tpl := s.lookupTemplate(ctx, run.TemplateName)
	creds := whatsapp.Credentials{PhoneNumberID: run.PhoneNumberID, AccessToken: run.AccessToken}
	limiter := newSendLimiter(s.cfg.MessageDelay)

	paused := false
	for _, contact := range task.Contacts {
		status, err := s.campaigns.GetStatus(ctx, run.CampaignID)
		if err != nil {
			return err
		}
		if status == models.CampaignStatusPaused {
			log.Info("campaign paused, stopping batch")
			paused = true
			break
		}

		if st, ok := statuses[contact.Phone]; ok && st != models.ContactStatusPending {
			continue
		}

		held, err := s.dispatch.ExtendLease(ctx, task, s.cfg.Lease)
		if err != nil {
			return err
		}
		if !held {
			log.Warn("batch lease lost, leaving the batch to its new holder")
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		claimed, err := s.contacts.ClaimForSend(ctx, run.CampaignID, contact.Phone, task.ID)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		outcome, err := s.sendOne(ctx, run, task, tpl, creds, contact)
		if err != nil {
			return err
		}
		statuses[contact.Phone] = outcome
	}

	totals, committed, err := s.dispatch.CommitBatch(ctx, task)
	if err != nil {
		return err
	}
	if committed {
		log.Info("batch committed",
			zap.Int("sent", totals.Sent),
			zap.Int("failed", totals.Failed),
			zap.Bool("paused", paused),
		)
		_ = s.publisher.Publish(ctx, events.ChannelCampaign, events.Event{
			Type: events.EventBatchCommitted,
			Payload: map[string]any{
				"campaign_id": run.CampaignID,
				"run_id":      run.ID,
				"batch":       task.BatchIndex,
				"sent":        totals.Sent,
				"failed":      totals.Failed,
			},
		})
	} else {
		log.Warn("batch lease lost before commit")
	}

	if paused {
		return s.dispatch.StopRun(ctx, run.ID, models.RunStatusPaused)
	}
	return nil
}

// sendOne sends to a claimed contact and persists the outcome. Send failures
// are recorded on the contact; only storage and cancellation errors are
// returned.
func (s *DispatchService) sendOne(ctx context.Context, run *models.DispatchRun, task *models.DispatchTask, tpl *models.Template, creds whatsapp.Credentials, contact models.DispatchContact) (string, error) {
	resolved := s.resolver.Resolve(tpl, contact, run.TemplateVariables)
	language := s.cfg.TemplateLanguage
	if tpl != nil && tpl.Language != "" {
		language = tpl.Language
	}
	msg := whatsapp.NewTemplateMessage(contact.Phone, run.TemplateName, language, resolved.Header, resolved.Body, resolved.Buttons)

	res, sendErr := s.sender.SendTemplate(ctx, creds, msg)
	if sendErr == nil {
		if _, err := s.contacts.MarkSent(ctx, run.CampaignID, contact.Phone, task.ID, res.MessageID, s.now()); err != nil {
			return "", fmt.Errorf("mark %s sent: %w", contact.Phone, err)
		}
		metrics.IncMessagesSent()
		return models.ContactStatusSent, nil
	}
	if ctx.Err() != nil {
		if err := s.contacts.ReleaseClaim(context.WithoutCancel(ctx), run.CampaignID, contact.Phone, task.ID); err != nil {
			s.log.Error("failed to release contact claim", zap.String("phone", contact.Phone), zap.Error(err))
		}
		return "", ctx.Err()
	}

	code := 0
	detail := sendErr.Error()
	var apiErr *whatsapp.APIError
	if errors.As(sendErr, &apiErr) {
		code = apiErr.Code
		detail = apiErr.Message
	} else {
		s.log.Error("unexpected send error",
			zap.String("campaign_id", run.CampaignID.String()),
			zap.String("phone", contact.Phone),
			zap.Error(sendErr),
		)
	}

	c := whatsapp.Classify(code)
	reason := c.UserMessage
	if code == 0 {
		reason = fmt.Sprintf("%s (%s)", c.UserMessage, detail)
	}
	if _, err := s.contacts.MarkFailed(ctx, run.CampaignID, contact.Phone, task.ID, code, reason, s.now()); err != nil {
		return "", fmt.Errorf("mark %s failed: %w", contact.Phone, err)
	}
	metrics.IncMessagesFailed(c.Category)
	s.log.Info("send failed",
		zap.String("campaign_id", run.CampaignID.String()),
		zap.String("phone", contact.Phone),
		zap.String("reason", whatsapp.FormatFailureReason(code)),
		zap.String("provider_message", detail),
	)

	if c.Critical && s.alerts != nil {
		_, err := s.alerts.Raise(ctx, c, map[string]any{
			"details":     detail,
			"campaign_id": run.CampaignID,
			"phone":       contact.Phone,
		})
		if err != nil {
			s.log.Error("failed to raise account alert", zap.Int("code", code), zap.Error(err))
		}
	}
	if c.OptOut && s.optOut != nil {
		if err := s.optOut.OptOut(ctx, contact.Phone, code, c.UserMessage); err != nil {
			s.log.Error("failed to record opt-out", zap.String("phone", contact.Phone), zap.Error(err))
		}
	}
	return models.ContactStatusFailed, nil
}

// CompleteCampaign assigns the final status from the counters. A campaign
// that is no longer SENDING keeps its status.
func (s *DispatchService) CompleteCampaign(ctx context.Context, run *models.DispatchRun, task *models.DispatchTask) error {
	status, err := s.campaigns.Complete(ctx, run.CampaignID)
	if err != nil {
		return err
	}

	if status == "" {
		current, err := s.campaigns.GetStatus(ctx, run.CampaignID)
		if err != nil {
			return err
		}
		runStatus := models.RunStatusCompleted
		if current == models.CampaignStatusPaused {
			runStatus = models.RunStatusPaused
		}
		s.log.Info("campaign left unchanged at completion",
			zap.String("campaign_id", run.CampaignID.String()),
			zap.String("status", current),
		)
		if _, err := s.dispatch.CompleteTask(ctx, task.ID); err != nil {
			return err
		}
		return s.dispatch.StopRun(ctx, run.ID, runStatus)
	}

	if err := s.completeTask(ctx, task); err != nil {
		return err
	}
	if err := s.dispatch.FinishRun(ctx, run.ID); err != nil {
		return err
	}

	s.log.Info("campaign finished",
		zap.String("campaign_id", run.CampaignID.String()),
		zap.String("status", status),
	)
	s.publishStatus(ctx, run.CampaignID, status)
	s.auditLog(ctx, models.ActorWorker, "campaign_"+strings.ToLower(status), run.CampaignID, map[string]any{"run_id": run.ID})
	return nil
}

// Pause stops a SENDING campaign. Batches in flight notice before their next
// contact.
func (s *DispatchService) Pause(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.transition(ctx, campaignID, models.CampaignStatusSending, models.CampaignStatusPaused); err != nil {
		return err
	}
	s.auditLog(ctx, models.ActorOperator, "campaign_paused", campaignID, nil)
	return nil
}

// Resume moves a PAUSED campaign back to SENDING and enqueues a run over its
// pending contacts, reusing the template of the latest run. Empty creds are
// taken from settings, then from the latest run.
func (s *DispatchService) Resume(ctx context.Context, campaignID uuid.UUID, creds whatsapp.Credentials) (*models.DispatchRun, error) {
	campaign, err := s.getCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusPaused {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, campaign.Status, models.CampaignStatusSending)
	}

	templateName := campaign.TemplateName
	vars := campaign.TemplateVariables
	var lastCreds whatsapp.Credentials

	last, err := s.dispatch.LatestRun(ctx, campaignID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if last != nil {
		templateName = last.TemplateName
		vars = last.TemplateVariables
		lastCreds = whatsapp.Credentials{PhoneNumberID: last.PhoneNumberID, AccessToken: last.AccessToken}
	}
	if !creds.Valid() {
		current, err := s.credentials.Credentials(ctx)
		switch {
		case err == nil:
			creds = current
		case lastCreds.Valid():
			creds = lastCreds
		default:
			return nil, err
		}
	}

	pending, err := s.contacts.ListPending(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, campaignID, models.CampaignStatusPaused, models.CampaignStatusSending); err != nil {
		return nil, err
	}

	run, err := s.enqueueRun(ctx, campaignID, templateName, vars, creds, pending)
	if err != nil {
		s.revertStart(ctx, campaignID, models.CampaignStatusPaused)
		return nil, err
	}
	s.auditLog(ctx, models.ActorOperator, "campaign_resumed", campaignID, map[string]any{"pending": len(pending)})
	return run, nil
}

// StartDue starts SCHEDULED campaigns whose time has come. It returns how
// many were started.
func (s *DispatchService) StartDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.campaigns.ListDueScheduled(ctx, now, 20)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	creds, err := s.credentials.Credentials(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, c := range due {
		pending, err := s.contacts.ListPending(ctx, c.ID)
		if err != nil {
			s.log.Error("failed to load scheduled contacts", zap.String("campaign_id", c.ID.String()), zap.Error(err))
			continue
		}
		ok, err := s.campaigns.UpdateStatus(ctx, c.ID, models.CampaignStatusScheduled, models.CampaignStatusSending)
		if err != nil {
			s.log.Error("failed to start scheduled campaign", zap.String("campaign_id", c.ID.String()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if _, err := s.enqueueRun(ctx, c.ID, c.TemplateName, c.TemplateVariables, creds, pending); err != nil {
			s.log.Error("failed to enqueue scheduled campaign", zap.String("campaign_id", c.ID.String()), zap.Error(err))
			s.revertStart(ctx, c.ID, models.CampaignStatusScheduled)
			continue
		}
		s.publishStatus(ctx, c.ID, models.CampaignStatusSending)
		started++
	}
	return started, nil
}

// revertStart puts a campaign moved to SENDING back to its previous status
// when no run could be enqueued for it. A campaign changed in the meantime
// is left alone.
func (s *DispatchService) revertStart(ctx context.Context, campaignID uuid.UUID, to string) {
	ctx = context.WithoutCancel(ctx)
	ok, err := s.campaigns.UpdateStatus(ctx, campaignID, models.CampaignStatusSending, to)
	if err != nil {
		s.log.Error("failed to revert campaign status",
			zap.String("campaign_id", campaignID.String()),
			zap.String("status", to),
			zap.Error(err),
		)
		return
	}
	if ok {
		s.log.Warn("campaign start reverted", zap.String("campaign_id", campaignID.String()), zap.String("status", to))
		s.publishStatus(ctx, campaignID, to)
	}
}

func (s *DispatchService) transition(ctx context.Context, campaignID uuid.UUID, from, to string) error {
	if !models.IsValidCampaignTransition(from, to) {
		return ErrInvalidTransition
	}
	ok, err := s.campaigns.UpdateStatus(ctx, campaignID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.campaigns.GetStatus(ctx, campaignID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrCampaignNotFound
			}
			return err
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}
	s.publishStatus(ctx, campaignID, to)
	return nil
}

func (s *DispatchService) getCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return c, nil
}

// lookupTemplate is best effort: without a stored definition the resolver
// falls back to legacy parameters.
func (s *DispatchService) lookupTemplate(ctx context.Context, name string) *models.Template {
	tpl, err := s.templates.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Warn("template not found, using legacy parameters", zap.String("template", name))
		} else {
			s.log.Warn("template lookup failed, using legacy parameters", zap.String("template", name), zap.Error(err))
		}
		return nil
	}
	return tpl
}

func (s *DispatchService) completeTask(ctx context.Context, task *models.DispatchTask) error {
	done, err := s.dispatch.CompleteTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if !done {
		s.log.Warn("task lease lost before completion", zap.String("task_id", task.ID.String()))
	}
	return nil
}

func (s *DispatchService) publishStatus(ctx context.Context, campaignID uuid.UUID, status string) {
	_ = s.publisher.Publish(ctx, events.ChannelCampaign, events.Event{
		Type: events.EventCampaignStatusChanged,
		Payload: map[string]any{
			"campaign_id": campaignID,
			"status":      status,
		},
	})
}

func (s *DispatchService) auditLog(ctx context.Context, actor, action string, campaignID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	id := campaignID
	if err := s.audit.Log(ctx, models.AuditLog{
		ActorType:  actor,
		Action:     action,
		EntityType: "campaign",
		EntityID:   &id,
		Meta:       meta,
	}); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// newSendLimiter spaces consecutive sends of a batch by delay.
func newSendLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
