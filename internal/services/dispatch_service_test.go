package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartzap/backend/internal/events"
	"github.com/smartzap/backend/internal/models"
	"github.com/smartzap/backend/internal/templatevars"
	"github.com/smartzap/backend/internal/whatsapp"
	"github.com/smartzap/backend/internal/workflow"
	"go.uber.org/zap"
)

var testCreds = whatsapp.Credentials{PhoneNumberID: "123", AccessToken: "tok"}

type dispatchFixture struct {
	store    *memStore
	alerts   *fakeAlertStore
	sender   *fakeSender
	optOut   *fakeOptOut
	pub      *recordingPublisher
	notifier *countingNotifier
	audit    *memAudit
	svc      *DispatchService
}

func newDispatchFixture(t *testing.T, batchSize int) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		store:    newMemStore(),
		alerts:   newFakeAlertStore(),
		sender:   &fakeSender{errs: map[string]error{}},
		optOut:   &fakeOptOut{},
		pub:      &recordingPublisher{},
		notifier: &countingNotifier{},
		audit:    &memAudit{},
	}
	log := zap.NewNop()
	templates := &fakeTemplates{byName: map[string]*models.Template{
		"promo_template": {
			Name:     "promo_template",
			Language: "pt_BR",
			Components: []models.TemplateComponent{
				models.BodyComponent{Text: "Olá {{1}}, use o cupom {{2}}"},
			},
		},
	}}
	f.svc = NewDispatchService(DispatchDeps{
		Campaigns:   f.store,
		Contacts:    f.store,
		Templates:   templates,
		Dispatch:    f.store,
		Sender:      f.sender,
		Credentials: staticCredentials{creds: testCreds},
		Alerts:      NewAlertService(f.alerts, f.pub, log),
		OptOut:      f.optOut,
		Resolver:    templatevars.NewResolver(log),
		Publisher:   f.pub,
		Notifier:    f.notifier,
		Audit:       f.audit,
	}, DispatchConfig{BatchSize: batchSize, MaxAttempts: 3}, log)
	return f
}

// drain executes claimable tasks in chain order until none is left.
func (f *dispatchFixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		task := f.store.claim()
		if task == nil {
			return
		}
		if err := f.svc.Execute(ctx, task); err != nil {
			t.Fatalf("execute %s #%d: %v", task.Kind, task.BatchIndex, err)
		}
	}
	t.Fatal("task chain did not drain")
}

func contactsN(n int) []models.DispatchContact {
	out := make([]models.DispatchContact, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.DispatchContact{
			Phone: fmt.Sprintf("55119%08d", i),
			Name:  fmt.Sprintf("Contato %d", i),
		})
	}
	return out
}

func TestDispatchSingleContactSent(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contact := models.DispatchContact{Phone: "5511999990001", Name: "Ana"}

	run, err := f.svc.Enqueue(context.Background(), DispatchRequest{
		CampaignID:        camp.ID,
		TemplateName:      "promo_template",
		Contacts:          []models.DispatchContact{contact},
		TemplateVariables: &models.TemplateVariables{Body: []string{"PROMO10"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalBatches != 1 || run.TotalContacts != 1 {
		t.Errorf("run = %d batches / %d contacts, want 1/1", run.TotalBatches, run.TotalContacts)
	}
	if f.notifier.n != 1 {
		t.Errorf("workers notified %d times, want 1", f.notifier.n)
	}

	f.drain(t)

	row := f.store.contact(camp.ID, contact.Phone)
	if row.Status != models.ContactStatusSent || row.MessageID == nil || *row.MessageID != "wamid.1" {
		t.Fatalf("contact = %s / %v, want sent / wamid.1", row.Status, row.MessageID)
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 1 || got.Failed != 0 {
		t.Errorf("counters sent=%d failed=%d, want 1/0", got.Sent, got.Failed)
	}
	if got.Status != models.CampaignStatusCompleted {
		t.Errorf("campaign status = %s, want COMPLETED", got.Status)
	}
	if f.store.runStatus(run.ID) != models.RunStatusCompleted {
		t.Errorf("run status = %s, want completed", f.store.runStatus(run.ID))
	}

	msg := f.sender.sent[0]
	if msg.Template.Name != "promo_template" || msg.Template.Language.Code != "pt_BR" {
		t.Errorf("template = %+v", msg.Template)
	}
	body := msg.Template.Components[0].Parameters
	if len(body) != 2 || body[0].Text != "Ana" || body[1].Text != "PROMO10" {
		t.Errorf("body parameters = %+v, want [Ana PROMO10]", body)
	}
	if f.sender.creds[0] != testCreds {
		t.Errorf("sent with %+v, want settings credentials", f.sender.creds[0])
	}
}

func TestDispatchCriticalFailureRaisesAlert(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	phone := "5511999990002"
	f.sender.errs[phone] = &whatsapp.APIError{StatusCode: 400, Code: 131026, Message: "Message undeliverable"}

	_, err := f.svc.Enqueue(context.Background(), DispatchRequest{
		CampaignID:   camp.ID,
		TemplateName: "promo_template",
		Contacts:     []models.DispatchContact{{Phone: phone, Name: "Bia"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.drain(t)

	row := f.store.contact(camp.ID, phone)
	want := whatsapp.Classify(131026)
	if row.Status != models.ContactStatusFailed {
		t.Fatalf("contact status = %s, want failed", row.Status)
	}
	if row.FailureReason == nil || *row.FailureReason != want.UserMessage {
		t.Errorf("failure reason = %v, want %q", row.FailureReason, want.UserMessage)
	}
	if row.FailureCode == nil || *row.FailureCode != 131026 {
		t.Errorf("failure code = %v, want 131026", row.FailureCode)
	}

	alert := f.alerts.get(models.AlertIDForCode(131026))
	if alert == nil {
		t.Fatal("expected an account alert")
	}
	if alert.Type != want.Category || alert.Details["action"] != want.Action {
		t.Errorf("alert = %+v", alert)
	}

	got := f.store.campaign(camp.ID)
	if got.Failed != 1 || got.Sent != 0 {
		t.Errorf("counters sent=%d failed=%d, want 0/1", got.Sent, got.Failed)
	}
	if got.Status != models.CampaignStatusFailed {
		t.Errorf("campaign status = %s, want FAILED when every recipient failed", got.Status)
	}
}

func TestDispatchFailureSideEffects(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantAlert bool
		wantOpt   bool
		wantCode  int
		reason    string
	}{
		{"opt out", &whatsapp.APIError{Code: 131050}, false, true, 131050, whatsapp.Classify(131050).UserMessage},
		{"non critical", &whatsapp.APIError{Code: 131047}, false, false, 131047, whatsapp.Classify(131047).UserMessage},
		{"payment", &whatsapp.APIError{Code: 131042}, true, false, 131042, whatsapp.Classify(131042).UserMessage},
		{"transport", errors.New("dial tcp: connection reset"), false, false, 0, "connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture(t, 40)
			camp := f.store.addCampaign(models.CampaignStatusDraft)
			phone := "5511988887777"
			f.sender.errs[phone] = tt.err

			if _, err := f.svc.Enqueue(context.Background(), DispatchRequest{
				CampaignID: camp.ID,
				Contacts:   []models.DispatchContact{{Phone: phone}},
			}); err != nil {
				t.Fatal(err)
			}
			f.drain(t)

			row := f.store.contact(camp.ID, phone)
			if row.Status != models.ContactStatusFailed || row.FailureCode == nil || *row.FailureCode != tt.wantCode {
				t.Fatalf("contact = %s code %v, want failed code %d", row.Status, row.FailureCode, tt.wantCode)
			}
			if row.FailureReason == nil || !strings.Contains(*row.FailureReason, tt.reason) {
				t.Errorf("failure reason = %v, want it to contain %q", row.FailureReason, tt.reason)
			}
			if got := f.alerts.get(models.AlertIDForCode(tt.wantCode)) != nil; got != tt.wantAlert {
				t.Errorf("alert raised = %v, want %v", got, tt.wantAlert)
			}
			if got := len(f.optOut.phones) == 1; got != tt.wantOpt {
				t.Errorf("opt-out recorded = %v, want %v", got, tt.wantOpt)
			}
		})
	}
}

func TestDispatchPauseMidBatch(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(40)

	// the operator pauses while contact #14 is being sent
	f.sender.onSend = func(msg whatsapp.MessageRequest) {
		if msg.To == contacts[13].Phone {
			f.store.setStatus(camp.ID, models.CampaignStatusPaused)
		}
	}
	f.sender.errs[contacts[0].Phone] = &whatsapp.APIError{Code: 131047}

	run, err := f.svc.Enqueue(context.Background(), DispatchRequest{
		CampaignID: camp.ID,
		Contacts:   contacts,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.drain(t)

	if n := len(f.sender.sent); n != 14 {
		t.Fatalf("sent %d messages, want 14", n)
	}
	for i, c := range contacts {
		row := f.store.contact(camp.ID, c.Phone)
		if i >= 14 && row.Status != models.ContactStatusPending {
			t.Errorf("contact #%d status = %s, want pending", i+1, row.Status)
		}
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 13 || got.Failed != 1 {
		t.Errorf("counters sent=%d failed=%d, want 13/1", got.Sent, got.Failed)
	}
	if got.Status != models.CampaignStatusPaused {
		t.Errorf("campaign status = %s, want PAUSED", got.Status)
	}
	if f.store.runStatus(run.ID) != models.RunStatusPaused {
		t.Errorf("run status = %s, want paused", f.store.runStatus(run.ID))
	}
}

func TestDispatchResumeSendsRemaining(t *testing.T) {
	f := newDispatchFixture(t, 10)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(25)

	f.sender.onSend = func(msg whatsapp.MessageRequest) {
		if msg.To == contacts[4].Phone {
			f.store.setStatus(camp.ID, models.CampaignStatusPaused)
		}
	}
	if _, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts}); err != nil {
		t.Fatal(err)
	}
	f.drain(t)
	f.sender.onSend = nil

	run, err := f.svc.Resume(context.Background(), camp.ID, whatsapp.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalContacts != 20 {
		t.Errorf("resume run has %d contacts, want 20", run.TotalContacts)
	}
	f.drain(t)

	seen := map[string]int{}
	for _, to := range f.sender.recipients() {
		seen[to]++
	}
	for _, c := range contacts {
		if seen[c.Phone] != 1 {
			t.Errorf("%s sent %d times, want once", c.Phone, seen[c.Phone])
		}
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 25 || got.Status != models.CampaignStatusCompleted || got.TotalRecipients != 25 {
		t.Errorf("campaign = sent %d status %s recipients %d", got.Sent, got.Status, got.TotalRecipients)
	}
}

func TestDispatchRetriedBatchSkipsProcessedContacts(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(5)
	if _, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	initTask := f.store.claim()
	if err := f.svc.Execute(ctx, initTask); err != nil {
		t.Fatal(err)
	}

	// first attempt dies while sending the third contact
	batch := f.store.claim()
	cctx, cancel := context.WithCancel(ctx)
	f.sender.onSend = func(msg whatsapp.MessageRequest) {
		if msg.To == contacts[2].Phone {
			cancel()
		}
	}
	f.sender.errs[contacts[2].Phone] = context.Canceled
	if err := f.svc.Execute(cctx, batch); !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted attempt returned %v, want context.Canceled", err)
	}
	f.store.release(batch.ID)
	f.sender.onSend = nil
	delete(f.sender.errs, contacts[2].Phone)

	f.drain(t)

	seen := map[string]int{}
	for _, to := range f.sender.recipients() {
		seen[to]++
	}
	if seen[contacts[0].Phone] != 1 || seen[contacts[1].Phone] != 1 {
		t.Errorf("contacts sent before the crash were re-sent: %v", seen)
	}
	if row := f.store.contact(camp.ID, contacts[2].Phone); row.Status != models.ContactStatusSent {
		t.Errorf("interrupted contact status = %s, want sent after retry", row.Status)
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 5 || got.Failed != 0 {
		t.Errorf("counters sent=%d failed=%d, want 5/0", got.Sent, got.Failed)
	}
}

func TestDispatchDuplicatePhoneSentOnce(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := []models.DispatchContact{{Phone: "5511900000001"}, {Phone: "5511900000001"}}

	run, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalContacts != 1 {
		t.Errorf("run contacts = %d, want 1", run.TotalContacts)
	}
	f.drain(t)

	if n := len(f.sender.sent); n != 1 {
		t.Errorf("sent %d messages, want 1", n)
	}
	if got := f.store.campaign(camp.ID); got.Sent != 1 || got.TotalRecipients != 1 {
		t.Errorf("campaign sent=%d recipients=%d, want 1/1", got.Sent, got.TotalRecipients)
	}
}

func TestSendBatchSkipsRepeatedPhone(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusSending)
	phone := "5511900000002"
	run := &models.DispatchRun{ID: uuid.New(), CampaignID: camp.ID, TemplateName: "promo_template", Status: models.RunStatusRunning}
	tasks := models.BuildTaskChain(run, []models.DispatchContact{{Phone: phone}, {Phone: phone}}, 40, 3)
	if err := f.store.CreateRun(context.Background(), run, tasks); err != nil {
		t.Fatal(err)
	}
	f.drain(t)

	if n := len(f.sender.sent); n != 1 {
		t.Errorf("sent %d messages, want 1", n)
	}
}

func TestDispatchMultipleBatchesInOrder(t *testing.T) {
	f := newDispatchFixture(t, 3)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(7)

	run, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalBatches != 3 {
		t.Fatalf("batches = %d, want 3", run.TotalBatches)
	}
	f.drain(t)

	got := f.sender.recipients()
	for i, c := range contacts {
		if got[i] != c.Phone {
			t.Fatalf("send #%d went to %s, want %s", i+1, got[i], c.Phone)
		}
	}
	if n := f.pub.count(events.ChannelCampaign, events.EventBatchCommitted); n != 3 {
		t.Errorf("batch_committed events = %d, want 3", n)
	}
}

func TestEnqueueValidation(t *testing.T) {
	f := newDispatchFixture(t, 40)
	completed := f.store.addCampaign(models.CampaignStatusCompleted)
	draft := f.store.addCampaign(models.CampaignStatusDraft)

	tests := []struct {
		name    string
		req     DispatchRequest
		wantErr error
		invalid bool
	}{
		{"missing campaign id", DispatchRequest{}, nil, true},
		{"blank phone", DispatchRequest{CampaignID: draft.ID, Contacts: []models.DispatchContact{{Phone: " "}}}, nil, true},
		{"unknown campaign", DispatchRequest{CampaignID: uuid.New()}, ErrCampaignNotFound, false},
		{"finished campaign", DispatchRequest{CampaignID: completed.ID}, ErrInvalidTransition, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Enqueue(context.Background(), tt.req)
			if tt.invalid {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnqueueCredentials(t *testing.T) {
	t.Run("payload credentials win", func(t *testing.T) {
		f := newDispatchFixture(t, 40)
		camp := f.store.addCampaign(models.CampaignStatusDraft)
		run, err := f.svc.Enqueue(context.Background(), DispatchRequest{
			CampaignID:    camp.ID,
			PhoneNumberID: "999",
			AccessToken:   "payload-token",
		})
		if err != nil {
			t.Fatal(err)
		}
		if run.PhoneNumberID != "999" || run.AccessToken != "payload-token" {
			t.Errorf("run credentials = %s/%s", run.PhoneNumberID, run.AccessToken)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newDispatchFixture(t, 40)
		f.svc.credentials = staticCredentials{err: ErrMissingCredentials}
		camp := f.store.addCampaign(models.CampaignStatusDraft)
		_, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID})
		if !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("err = %v, want ErrMissingCredentials", err)
		}
	})
}

func TestInitStopsRunForPausedCampaign(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	run, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contactsN(2)})
	if err != nil {
		t.Fatal(err)
	}
	f.store.setStatus(camp.ID, models.CampaignStatusPaused)
	f.drain(t)

	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages for a paused campaign", len(f.sender.sent))
	}
	if f.store.runStatus(run.ID) != models.RunStatusPaused {
		t.Errorf("run status = %s, want paused", f.store.runStatus(run.ID))
	}
	if got := f.store.campaign(camp.ID).Status; got != models.CampaignStatusPaused {
		t.Errorf("campaign status = %s, want PAUSED", got)
	}
}

func TestExecuteUnknownRunIsPermanent(t *testing.T) {
	f := newDispatchFixture(t, 40)
	err := f.svc.Execute(context.Background(), &models.DispatchTask{ID: uuid.New(), RunID: uuid.New(), Kind: models.TaskKindInit})
	var perm *workflow.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("err = %v, want a permanent error", err)
	}
}

func TestPauseTransitions(t *testing.T) {
	f := newDispatchFixture(t, 40)
	sending := f.store.addCampaign(models.CampaignStatusSending)
	draft := f.store.addCampaign(models.CampaignStatusDraft)

	if err := f.svc.Pause(context.Background(), sending.ID); err != nil {
		t.Fatalf("pause sending: %v", err)
	}
	if got := f.store.campaign(sending.ID).Status; got != models.CampaignStatusPaused {
		t.Errorf("status = %s, want PAUSED", got)
	}
	if err := f.svc.Pause(context.Background(), draft.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause draft: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.svc.Resume(context.Background(), draft.ID, whatsapp.Credentials{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume draft: err = %v, want ErrInvalidTransition", err)
	}
	if err := f.svc.Pause(context.Background(), uuid.New()); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("pause unknown: err = %v, want ErrCampaignNotFound", err)
	}
}

func TestStartDue(t *testing.T) {
	f := newDispatchFixture(t, 40)
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := f.store.addCampaign(models.CampaignStatusScheduled)
	f.store.campaigns[due.ID].ScheduledAt = &past
	later := f.store.addCampaign(models.CampaignStatusScheduled)
	f.store.campaigns[later.ID].ScheduledAt = &future
	if err := f.store.EnsurePending(context.Background(), due.ID, contactsN(3)); err != nil {
		t.Fatal(err)
	}

	started, err := f.svc.StartDue(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	f.drain(t)

	if got := f.store.campaign(due.ID); got.Status != models.CampaignStatusCompleted || got.Sent != 3 {
		t.Errorf("due campaign = %s sent %d", got.Status, got.Sent)
	}
	if got := f.store.campaign(later.ID).Status; got != models.CampaignStatusScheduled {
		t.Errorf("future campaign status = %s, want SCHEDULED", got)
	}
}

func TestDispatchReclaimedBatchSendsOnce(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(4)
	if _, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := f.svc.Execute(ctx, f.store.claim()); err != nil {
		t.Fatal(err)
	}
	batch := f.store.claim()

	// the lease runs out while the first contact is on the wire and another
	// worker picks the batch up
	var second error
	reclaimed := false
	f.sender.onSend = func(msg whatsapp.MessageRequest) {
		if reclaimed {
			return
		}
		reclaimed = true
		second = f.svc.Execute(ctx, f.store.reclaim(batch.ID))
	}
	if err := f.svc.Execute(ctx, batch); err != nil {
		t.Fatalf("first holder: %v", err)
	}
	if second != nil {
		t.Fatalf("second holder: %v", second)
	}
	f.sender.onSend = nil
	f.drain(t)

	seen := map[string]int{}
	for _, to := range f.sender.recipients() {
		seen[to]++
	}
	for _, c := range contacts {
		if seen[c.Phone] != 1 {
			t.Errorf("%s sent %d times, want once", c.Phone, seen[c.Phone])
		}
		if row := f.store.contact(camp.ID, c.Phone); row.Status != models.ContactStatusSent {
			t.Errorf("%s status = %s, want sent", c.Phone, row.Status)
		}
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 4 || got.Failed != 0 {
		t.Errorf("counters sent=%d failed=%d, want 4/0", got.Sent, got.Failed)
	}
	if got.Status != models.CampaignStatusCompleted {
		t.Errorf("campaign status = %s, want COMPLETED", got.Status)
	}
}

func TestDispatchInterruptedSendIsNotRepeated(t *testing.T) {
	f := newDispatchFixture(t, 40)
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(3)
	if _, err := f.svc.Enqueue(context.Background(), DispatchRequest{CampaignID: camp.ID, Contacts: contacts}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := f.svc.Execute(ctx, f.store.claim()); err != nil {
		t.Fatal(err)
	}
	batch := f.store.claim()

	// a worker claimed the first contact and died before the provider answered
	if ok, err := f.store.ClaimForSend(ctx, camp.ID, contacts[0].Phone, batch.ID); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	f.store.backdateClaims(time.Hour)

	if err := f.svc.Execute(ctx, f.store.reclaim(batch.ID)); err != nil {
		t.Fatal(err)
	}
	f.drain(t)

	for _, to := range f.sender.recipients() {
		if to == contacts[0].Phone {
			t.Fatalf("interrupted contact was sent again")
		}
	}
	row := f.store.contact(camp.ID, contacts[0].Phone)
	if row.Status != models.ContactStatusFailed || row.FailureReason == nil || *row.FailureReason != interruptedReason {
		t.Errorf("interrupted contact = %s / %v, want failed / %q", row.Status, row.FailureReason, interruptedReason)
	}
	got := f.store.campaign(camp.ID)
	if got.Sent != 2 || got.Failed != 1 {
		t.Errorf("counters sent=%d failed=%d, want 2/1", got.Sent, got.Failed)
	}
}

func TestEnqueueFailureRevertsCampaignStart(t *testing.T) {
	t.Run("resume", func(t *testing.T) {
		f := newDispatchFixture(t, 40)
		camp := f.store.addCampaign(models.CampaignStatusPaused)
		if err := f.store.EnsurePending(context.Background(), camp.ID, contactsN(2)); err != nil {
			t.Fatal(err)
		}
		f.store.createRunErr = errBoom

		if _, err := f.svc.Resume(context.Background(), camp.ID, whatsapp.Credentials{}); !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
		if got := f.store.campaign(camp.ID).Status; got != models.CampaignStatusPaused {
			t.Errorf("status = %s, want PAUSED", got)
		}

		f.store.createRunErr = nil
		if _, err := f.svc.Resume(context.Background(), camp.ID, whatsapp.Credentials{}); err != nil {
			t.Fatalf("second resume: %v", err)
		}
		f.drain(t)
		if got := f.store.campaign(camp.ID); got.Status != models.CampaignStatusCompleted || got.Sent != 2 {
			t.Errorf("campaign = %s sent %d, want COMPLETED sent 2", got.Status, got.Sent)
		}
	})

	t.Run("scheduled", func(t *testing.T) {
		f := newDispatchFixture(t, 40)
		past := time.Now().Add(-time.Minute)
		camp := f.store.addCampaign(models.CampaignStatusScheduled)
		f.store.campaigns[camp.ID].ScheduledAt = &past
		f.store.createRunErr = errBoom

		started, err := f.svc.StartDue(context.Background(), time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if started != 0 {
			t.Errorf("started = %d, want 0", started)
		}
		if got := f.store.campaign(camp.ID).Status; got != models.CampaignStatusScheduled {
			t.Errorf("status = %s, want SCHEDULED so the next tick retries", got)
		}

		f.store.createRunErr = nil
		if started, _ := f.svc.StartDue(context.Background(), time.Now()); started != 1 {
			t.Errorf("retry started = %d, want 1", started)
		}
	})
}

func TestRetryFailedRecipientsThroughDuplicate(t *testing.T) {
	f := newDispatchFixture(t, 40)
	campaigns := NewCampaignService(f.store, f.store, f.store, f.audit, zap.NewNop())
	ctx := context.Background()
	camp := f.store.addCampaign(models.CampaignStatusDraft)
	contacts := contactsN(2)
	f.sender.errs[contacts[0].Phone] = &whatsapp.APIError{Code: 131000, Message: "Something went wrong"}

	if _, err := f.svc.Enqueue(ctx, DispatchRequest{CampaignID: camp.ID, Contacts: contacts}); err != nil {
		t.Fatal(err)
	}
	f.drain(t)
	if _, err := f.svc.Enqueue(ctx, DispatchRequest{CampaignID: camp.ID}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("re-dispatch of a finished campaign: err = %v, want ErrInvalidTransition", err)
	}

	retry, err := campaigns.Duplicate(ctx, camp.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if retry.Status != models.CampaignStatusDraft || retry.TotalRecipients != 1 || retry.Name != "promo (Cópia)" {
		t.Fatalf("copy = %s %d %q", retry.Status, retry.TotalRecipients, retry.Name)
	}

	delete(f.sender.errs, contacts[0].Phone)
	run, err := f.svc.Enqueue(ctx, DispatchRequest{CampaignID: retry.ID})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalContacts != 1 {
		t.Errorf("retry run contacts = %d, want the stored failed recipient only", run.TotalContacts)
	}
	f.drain(t)

	if row := f.store.contact(retry.ID, contacts[0].Phone); row.Status != models.ContactStatusSent {
		t.Errorf("retried contact = %s, want sent", row.Status)
	}
	if got := f.store.campaign(retry.ID); got.Sent != 1 || got.Status != models.CampaignStatusCompleted {
		t.Errorf("copy = sent %d status %s", got.Sent, got.Status)
	}
	if got := f.store.campaign(camp.ID); got.Sent != 1 || got.Failed != 1 {
		t.Errorf("original counters changed: sent=%d failed=%d", got.Sent, got.Failed)
	}
}
