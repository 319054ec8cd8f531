package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dispatch run statuses
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPaused    = "paused"
	RunStatusFailed    = "failed"
)

// Task kinds
const (
	TaskKindInit      = "init"
	TaskKindSendBatch = "send_batch"
	TaskKindComplete  = "complete"
)

// Task statuses
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusDone      = "done"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// DispatchRun is one enqueued send of a campaign to a list of contacts.
type DispatchRun struct {
	ID                uuid.UUID         `json:"id"`
	CampaignID        uuid.UUID         `json:"campaign_id"`
	TemplateName      string            `json:"template_name"`
	TemplateVariables TemplateVariables `json:"template_variables"`
	PhoneNumberID     string            `json:"phone_number_id"`
	AccessToken       string            `json:"-"`
	Status            string            `json:"status"`
	TotalContacts     int               `json:"total_contacts"`
	TotalBatches      int               `json:"total_batches"`
	LastError         *string           `json:"last_error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
}

// DispatchTask is a persisted step of a run. Tasks of a run form a chain
// through DependsOn and are claimed only after their predecessor is done.
type DispatchTask struct {
	ID             uuid.UUID         `json:"id"`
	RunID          uuid.UUID         `json:"run_id"`
	CampaignID     uuid.UUID         `json:"campaign_id"`
	Kind           string            `json:"kind"`
	BatchIndex     int               `json:"batch_index"`
	IdempotencyKey string            `json:"idempotency_key"`
	DependsOn      *uuid.UUID        `json:"depends_on,omitempty"`
	Status         string            `json:"status"`
	Attempts       int               `json:"attempts"`
	MaxAttempts    int               `json:"max_attempts"`
	Contacts       []DispatchContact `json:"contacts,omitempty"`
	LastError      *string           `json:"last_error,omitempty"`
	AvailableAt    time.Time         `json:"available_at"`
	LockedUntil    *time.Time        `json:"locked_until,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func TaskIdempotencyKey(campaignID, runID uuid.UUID, kind string, batchIndex int) string {
	return fmt.Sprintf("campaign:%s:run:%s:%s:%d", campaignID, runID, kind, batchIndex)
}

// BuildTaskChain splits contacts into batches and links
// init -> send_batch_0 -> ... -> send_batch_n -> complete.
func BuildTaskChain(run *DispatchRun, contacts []DispatchContact, batchSize, maxAttempts int) []DispatchTask {
	if batchSize <= 0 {
		batchSize = 40
	}

	now := time.Now()
	var tasks []DispatchTask
	var prev *uuid.UUID

	add := func(kind string, batchIndex int, batch []DispatchContact) {
		t := DispatchTask{
			ID:             uuid.New(),
			RunID:          run.ID,
			CampaignID:     run.CampaignID,
			Kind:           kind,
			BatchIndex:     batchIndex,
			IdempotencyKey: TaskIdempotencyKey(run.CampaignID, run.ID, kind, batchIndex),
			DependsOn:      prev,
			Status:         TaskStatusPending,
			MaxAttempts:    maxAttempts,
			Contacts:       batch,
			AvailableAt:    now,
		}
		id := t.ID
		prev = &id
		tasks = append(tasks, t)
	}

	add(TaskKindInit, 0, nil)
	batches := 0
	for i := 0; i < len(contacts); i += batchSize {
		end := i + batchSize
		if end > len(contacts) {
			end = len(contacts)
		}
		add(TaskKindSendBatch, batches, contacts[i:end])
		batches++
	}
	add(TaskKindComplete, 0, nil)

	run.TotalBatches = batches
	run.TotalContacts = len(contacts)
	return tasks
}
