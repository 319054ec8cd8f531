package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/whatsapp"
)

// memStore keeps campaigns, contacts, runs and tasks in memory with the same
// guards the SQL statements carry.
type memStore struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*models.Campaign
	contacts  []*models.CampaignContact
	runs      map[uuid.UUID]*models.DispatchRun
	runOrder  []uuid.UUID
	tasks     []*models.DispatchTask
	claimedAt map[uuid.UUID]time.Time

	createRunErr error
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[uuid.UUID]*models.Campaign{},
		runs:      map[uuid.UUID]*models.DispatchRun{},
		claimedAt: map[uuid.UUID]time.Time{},
	}
}

func (m *memStore) addCampaign(status string) *models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Campaign{
		ID:           uuid.New(),
		Name:         "promo",
		Status:       status,
		TemplateName: "promo_template",
		CreatedAt:    time.Now(),
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *memStore) campaign(id uuid.UUID) models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memStore) setStatus(id uuid.UUID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].Status = status
}

func (m *memStore) contact(campaignID uuid.UUID, phone string) *models.CampaignContact {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.CampaignID == campaignID && c.Phone == phone {
			cp := *c
			return &cp
		}
	}
	return nil
}

// CampaignStore

func (m *memStore) Create(ctx context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetStatus(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

func (m *memStore) List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.campaigns {
		if f.Status == nil || *f.Status == c.Status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) MarkSending(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	switch c.Status {
	case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusSending:
		c.Status = models.CampaignStatusSending
		return true, nil
	}
	return false, nil
}

func (m *memStore) Complete(ctx context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c.Status != models.CampaignStatusSending {
		return "", nil
	}
	c.Status = c.FinalStatus()
	now := time.Now()
	c.CompletedAt = &now
	return c.Status, nil
}

func (m *memStore) IncrementStat(ctx context.Context, id uuid.UUID, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	switch field {
	case models.CampaignStatDelivered:
		c.Delivered++
	case models.CampaignStatRead:
		c.Read++
	case models.CampaignStatFailed:
		c.Failed++
	default:
		return fmt.Errorf("unknown stat %q", field)
	}
	return nil
}

func (m *memStore) RaiseRecipients(ctx context.Context, id uuid.UUID, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := 0
	for _, c := range m.contacts {
		if c.CampaignID == id {
			stored++
		}
	}
	c := m.campaigns[id]
	c.TotalRecipients = max(c.TotalRecipients, total, stored)
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memStore) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) Duplicate(ctx context.Context, srcID uuid.UUID, name string, onlyFailed bool) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.campaigns[srcID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := &models.Campaign{
		ID:                uuid.New(),
		Name:              name,
		Status:            models.CampaignStatusDraft,
		TemplateName:      src.TemplateName,
		TemplateVariables: src.TemplateVariables,
		CreatedAt:         time.Now(),
	}
	var copied []*models.CampaignContact
	for _, cc := range m.contacts {
		if cc.CampaignID != srcID || (onlyFailed && cc.Status != models.ContactStatusFailed) {
			continue
		}
		copied = append(copied, &models.CampaignContact{
			ID:           uuid.New(),
			CampaignID:   c.ID,
			ContactID:    cc.ContactID,
			Phone:        cc.Phone,
			Name:         cc.Name,
			Email:        cc.Email,
			CustomFields: cc.CustomFields,
			Status:       models.ContactStatusPending,
			CreatedAt:    time.Now(),
		})
	}
	m.contacts = append(m.contacts, copied...)
	c.TotalRecipients = len(copied)
	m.campaigns[c.ID] = c
	cp := *c
	return &cp, nil
}

// ContactStore

func (m *memStore) EnsurePending(ctx context.Context, campaignID uuid.UUID, contacts []models.DispatchContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
next:
	for _, dc := range contacts {
		for _, c := range m.contacts {
			if c.CampaignID == campaignID && c.Phone == dc.Phone {
				continue next
			}
		}
		m.contacts = append(m.contacts, &models.CampaignContact{
			ID:           uuid.New(),
			CampaignID:   campaignID,
			ContactID:    dc.ContactID,
			Phone:        dc.Phone,
			Name:         dc.Name,
			CustomFields: dc.CustomFields,
			Status:       models.ContactStatusPending,
			CreatedAt:    time.Now(),
		})
	}
	return nil
}

func (m *memStore) StatusesByPhone(ctx context.Context, campaignID uuid.UUID, phones []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, c := range m.contacts {
		if c.CampaignID != campaignID {
			continue
		}
		for _, p := range phones {
			if p == c.Phone {
				out[p] = c.Status
			}
		}
	}
	return out, nil
}

func (m *memStore) row(campaignID uuid.UUID, phone, status string) *models.CampaignContact {
	for _, c := range m.contacts {
		if c.CampaignID == campaignID && c.Phone == phone && c.Status == status {
			return c
		}
	}
	return nil
}

func (m *memStore) ClaimForSend(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.row(campaignID, phone, models.ContactStatusPending)
	if c == nil {
		return false, nil
	}
	c.Status = models.ContactStatusSending
	c.DispatchTaskID = &taskID
	m.claimedAt[c.ID] = time.Now()
	return true, nil
}

func (m *memStore) ReleaseClaim(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.claimedRow(campaignID, phone, taskID); c != nil {
		c.Status = models.ContactStatusPending
		c.DispatchTaskID = nil
		delete(m.claimedAt, c.ID)
	}
	return nil
}

func (m *memStore) FailStaleSending(ctx context.Context, taskID uuid.UUID, before time.Time, code int, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.contacts {
		if c.Status != models.ContactStatusSending || c.DispatchTaskID == nil || *c.DispatchTaskID != taskID {
			continue
		}
		if !m.claimedAt[c.ID].Before(before) {
			continue
		}
		now := time.Now()
		c.Status = models.ContactStatusFailed
		c.FailedAt = &now
		c.FailureCode = &code
		c.FailureReason = &reason
		n++
	}
	return n, nil
}

// backdateClaims makes every claim look as old as d.
func (m *memStore) backdateClaims(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, at := range m.claimedAt {
		m.claimedAt[id] = at.Add(-d)
	}
}

func (m *memStore) claimedRow(campaignID uuid.UUID, phone string, taskID uuid.UUID) *models.CampaignContact {
	c := m.row(campaignID, phone, models.ContactStatusSending)
	if c == nil || c.DispatchTaskID == nil || *c.DispatchTaskID != taskID {
		return nil
	}
	return c
}

// countLate adds an outcome written after its batch was committed, as the
// SQL does under the task row lock.
func (m *memStore) countLate(taskID uuid.UUID, apply func(c *models.Campaign)) {
	if t := m.taskByID(taskID); t != nil && t.Status == models.TaskStatusDone {
		apply(m.campaigns[t.CampaignID])
	}
}

func (m *memStore) MarkSent(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, messageID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.claimedRow(campaignID, phone, taskID)
	if c == nil {
		return false, nil
	}
	c.Status = models.ContactStatusSent
	c.MessageID = &messageID
	c.SentAt = &at
	m.countLate(taskID, func(camp *models.Campaign) { camp.Sent++ })
	return true, nil
}

func (m *memStore) MarkFailed(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, code int, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.claimedRow(campaignID, phone, taskID)
	if c == nil {
		return false, nil
	}
	c.Status = models.ContactStatusFailed
	c.FailedAt = &at
	c.FailureCode = &code
	c.FailureReason = &reason
	m.countLate(taskID, func(camp *models.Campaign) { camp.Failed++ })
	return true, nil
}

func (m *memStore) ListPending(ctx context.Context, campaignID uuid.UUID) ([]models.DispatchContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DispatchContact
	for _, c := range m.contacts {
		if c.CampaignID == campaignID && c.Status == models.ContactStatusPending {
			out = append(out, c.AsDispatchContact())
		}
	}
	return out, nil
}

func (m *memStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, f repositories.ContactFilter) ([]models.CampaignContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CampaignContact
	for _, c := range m.contacts {
		if c.CampaignID == campaignID && (f.Status == nil || *f.Status == c.Status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) GetByMessageID(ctx context.Context, messageID string) (*models.CampaignContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.MessageID != nil && *c.MessageID == messageID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memStore) transition(id uuid.UUID, allowed func(status string) bool, apply func(c *models.CampaignContact)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == id && allowed(c.Status) {
			apply(c)
			return true
		}
	}
	return false
}

func (m *memStore) TransitionDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return m.transition(id,
		func(s string) bool { return s != models.ContactStatusDelivered && s != models.ContactStatusRead },
		func(c *models.CampaignContact) { c.Status = models.ContactStatusDelivered; c.DeliveredAt = &at },
	), nil
}

func (m *memStore) TransitionRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return m.transition(id,
		func(s string) bool { return s != models.ContactStatusRead },
		func(c *models.CampaignContact) { c.Status = models.ContactStatusRead; c.ReadAt = &at },
	), nil
}

func (m *memStore) TransitionFailed(ctx context.Context, id uuid.UUID, at time.Time, code int, reason string) (bool, error) {
	return m.transition(id,
		func(s string) bool { return s != models.ContactStatusFailed },
		func(c *models.CampaignContact) {
			c.Status = models.ContactStatusFailed
			c.FailedAt = &at
			c.FailureCode = &code
			c.FailureReason = &reason
		},
	), nil
}

// DispatchStore

func (m *memStore) CreateRun(ctx context.Context, run *models.DispatchRun, tasks []models.DispatchTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRunErr != nil {
		return m.createRunErr
	}
	cp := *run
	m.runs[run.ID] = &cp
	m.runOrder = append(m.runOrder, run.ID)
	for i := range tasks {
		t := tasks[i]
		m.tasks = append(m.tasks, &t)
	}
	return nil
}

func (m *memStore) GetRun(ctx context.Context, id uuid.UUID) (*models.DispatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) LatestRun(ctx context.Context, campaignID uuid.UUID) (*models.DispatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		r := m.runs[m.runOrder[i]]
		if r.CampaignID == campaignID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memStore) taskByID(id uuid.UUID) *models.DispatchTask {
	for _, t := range m.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (m *memStore) ExtendLease(ctx context.Context, task *models.DispatchTask, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.taskByID(task.ID)
	return t != nil && t.Status == models.TaskStatusRunning && t.Attempts == task.Attempts, nil
}

func (m *memStore) CompleteTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.taskByID(taskID)
	if t == nil || t.Status != models.TaskStatusRunning {
		return false, nil
	}
	t.Status = models.TaskStatusDone
	return true, nil
}

func (m *memStore) CommitBatch(ctx context.Context, task *models.DispatchTask) (repositories.BatchTotals, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var totals repositories.BatchTotals
	t := m.taskByID(task.ID)
	if t == nil || t.Status != models.TaskStatusRunning || t.Attempts != task.Attempts {
		return totals, false, nil
	}
	t.Status = models.TaskStatusDone
	for _, c := range m.contacts {
		if c.DispatchTaskID == nil || *c.DispatchTaskID != task.ID {
			continue
		}
		switch {
		case c.MessageID != nil:
			totals.Sent++
		case c.Status == models.ContactStatusFailed:
			totals.Failed++
		}
	}
	camp := m.campaigns[task.CampaignID]
	camp.Sent += totals.Sent
	camp.Failed += totals.Failed
	return totals, true, nil
}

func (m *memStore) cancelRemaining(runID uuid.UUID) {
	for _, t := range m.tasks {
		if t.RunID == runID && t.Status == models.TaskStatusPending {
			t.Status = models.TaskStatusCancelled
		}
	}
}

func (m *memStore) StopRun(ctx context.Context, runID uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[runID]
	if r.FinishedAt == nil {
		now := time.Now()
		r.Status = status
		r.FinishedAt = &now
	}
	m.cancelRemaining(runID)
	return nil
}

func (m *memStore) FinishRun(ctx context.Context, runID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[runID]
	if r.FinishedAt == nil {
		now := time.Now()
		r.Status = models.RunStatusCompleted
		r.FinishedAt = &now
	}
	return nil
}

func (m *memStore) runStatus(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id].Status
}

// claim leases the next runnable task the way the SQL claim does.
func (m *memStore) claim() *models.DispatchTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Status != models.TaskStatusPending {
			continue
		}
		if t.DependsOn != nil {
			if dep := m.taskByID(*t.DependsOn); dep == nil || dep.Status != models.TaskStatusDone {
				continue
			}
		}
		t.Status = models.TaskStatusRunning
		t.Attempts++
		cp := *t
		return &cp
	}
	return nil
}

// reclaim re-leases a running task whose lease expired, as Claim does.
func (m *memStore) reclaim(id uuid.UUID) *models.DispatchTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.taskByID(id)
	if t == nil || t.Status != models.TaskStatusRunning {
		return nil
	}
	t.Attempts++
	cp := *t
	return &cp
}

// release puts a running task back to pending, as a retry would.
func (m *memStore) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.taskByID(id); t != nil && t.Status == models.TaskStatusRunning {
		t.Status = models.TaskStatusPending
	}
}

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.AccountAlert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: map[string]*models.AccountAlert{}}
}

func (f *fakeAlertStore) Upsert(ctx context.Context, a *models.AccountAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	cp.Dismissed = false
	f.alerts[a.ID] = &cp
	return nil
}

func (f *fakeAlertStore) DismissOpenByType(ctx context.Context, alertType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.alerts {
		if a.Type == alertType && !a.Dismissed {
			a.Dismissed = true
			n++
		}
	}
	return n, nil
}

func (f *fakeAlertStore) Dismiss(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Dismissed = true
	return nil
}

func (f *fakeAlertStore) List(ctx context.Context, includeDismissed bool) ([]models.AccountAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AccountAlert
	for _, a := range f.alerts {
		if includeDismissed || !a.Dismissed {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) get(id string) *models.AccountAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts[id]
}

type fakeTemplates struct {
	byName map[string]*models.Template
}

func (f *fakeTemplates) GetByName(ctx context.Context, name string) (*models.Template, error) {
	if t, ok := f.byName[name]; ok {
		return t, nil
	}
	return nil, repositories.ErrNotFound
}

// fakeSender answers from errs keyed by phone; other phones succeed.
type fakeSender struct {
	mu     sync.Mutex
	errs   map[string]error
	sent   []whatsapp.MessageRequest
	creds  []whatsapp.Credentials
	onSend func(msg whatsapp.MessageRequest)
	seq    int
}

func (f *fakeSender) SendTemplate(ctx context.Context, creds whatsapp.Credentials, msg whatsapp.MessageRequest) (*whatsapp.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.creds = append(f.creds, creds)
	f.seq++
	seq := f.seq
	err := f.errs[msg.To]
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	if err != nil {
		return nil, err
	}
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("wamid.%d", seq), WaID: msg.To}, nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

type staticCredentials struct {
	creds whatsapp.Credentials
	err   error
}

func (s staticCredentials) Credentials(ctx context.Context) (whatsapp.Credentials, error) {
	return s.creds, s.err
}

type fakeOptOut struct {
	mu     sync.Mutex
	phones []string
}

func (f *fakeOptOut) OptOut(ctx context.Context, phone string, code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phones = append(f.phones, phone)
	return nil
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) FirstSeen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memDedup) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

type fakeInbound struct {
	mu   sync.Mutex
	msgs map[string]*models.InboundMessage
}

func (f *fakeInbound) Save(ctx context.Context, m *models.InboundMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgs == nil {
		f.msgs = map[string]*models.InboundMessage{}
	}
	if _, ok := f.msgs[m.MessageID]; ok {
		return false, nil
	}
	f.msgs[m.MessageID] = m
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]events.Event{}
	}
	p.events[stream] = append(p.events[stream], ev)
	return nil
}

func (p *recordingPublisher) count(stream, eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events[stream] {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memAudit) Log(ctx context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, entry.Action)
	return nil
}

var errBoom = errors.New("boom")
