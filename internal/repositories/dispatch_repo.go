package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/models"
)

type DispatchRepo struct {
	pool *pgxpool.Pool
}

func NewDispatchRepo(pool *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{pool: pool}
}

const taskColumns = `
	id, run_id, campaign_id, kind, batch_index, idempotency_key, depends_on,
	status, attempts, max_attempts, contacts, last_error, available_at,
	locked_until, created_at, updated_at, completed_at`

func scanTask(row rowScanner) (*models.DispatchTask, error) {
	var t models.DispatchTask
	err := row.Scan(&t.ID, &t.RunID, &t.CampaignID, &t.Kind, &t.BatchIndex, &t.IdempotencyKey,
		&t.DependsOn, &t.Status, &t.Attempts, &t.MaxAttempts, &t.Contacts, &t.LastError,
		&t.AvailableAt, &t.LockedUntil, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateRun persists a run and its task chain atomically.
func (r *DispatchRepo) CreateRun(ctx context.Context, run *models.DispatchRun, tasks []models.DispatchTask) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO dispatch_runs (id, campaign_id, template_name, template_variables,
			                           phone_number_id, access_token, status, total_contacts, total_batches)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`, run.ID, run.CampaignID, run.TemplateName, run.TemplateVariables, run.PhoneNumberID,
			run.AccessToken, run.Status, run.TotalContacts, run.TotalBatches,
		).Scan(&run.CreatedAt, &run.UpdatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, t := range tasks {
			batch.Queue(`
				INSERT INTO dispatch_tasks (id, run_id, campaign_id, kind, batch_index, idempotency_key,
				                            depends_on, status, max_attempts, contacts, available_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, t.ID, t.RunID, t.CampaignID, t.Kind, t.BatchIndex, t.IdempotencyKey,
				t.DependsOn, t.Status, t.MaxAttempts, t.Contacts, t.AvailableAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *DispatchRepo) GetRun(ctx context.Context, id uuid.UUID) (*models.DispatchRun, error) {
	var run models.DispatchRun
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, template_name, template_variables, phone_number_id, access_token,
		       status, total_contacts, total_batches, last_error, created_at, updated_at, finished_at
		FROM dispatch_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.CampaignID, &run.TemplateName, &run.TemplateVariables,
		&run.PhoneNumberID, &run.AccessToken, &run.Status, &run.TotalContacts, &run.TotalBatches,
		&run.LastError, &run.CreatedAt, &run.UpdatedAt, &run.FinishedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

func (r *DispatchRepo) LatestRun(ctx context.Context, campaignID uuid.UUID) (*models.DispatchRun, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM dispatch_runs WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT 1
	`, campaignID).Scan(&id)
	if err != nil {
		return nil, notFound(err)
	}
	return r.GetRun(ctx, id)
}

// Claim leases the oldest runnable task: pending and due, or running with an
// expired lease. A task is runnable only once the task it depends on is done.
// It returns nil when nothing is runnable.
func (r *DispatchRepo) Claim(ctx context.Context, lease time.Duration) (*models.DispatchTask, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE dispatch_tasks
		SET status = 'running', attempts = attempts + 1,
		    locked_until = now() + make_interval(secs => $1), updated_at = now()
		WHERE id = (
			SELECT c.id FROM dispatch_tasks c
			LEFT JOIN dispatch_tasks d ON d.id = c.depends_on
			WHERE ((c.status = 'pending' AND c.available_at <= now())
			    OR (c.status = 'running' AND c.locked_until < now()))
			  AND (c.depends_on IS NULL OR d.status = 'done')
			ORDER BY c.created_at, c.batch_index
			FOR UPDATE OF c SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+taskColumns, lease.Seconds()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE dispatch_runs SET status = 'running', updated_at = now()
		WHERE id = $1 AND status = 'queued'
	`, t.RunID)
	return t, err
}

// Retry releases a task back to pending after delay.
func (r *DispatchRepo) Retry(ctx context.Context, task *models.DispatchTask, cause error, delay time.Duration) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_tasks
		SET status = 'pending', last_error = $2, locked_until = NULL,
		    available_at = now() + make_interval(secs => $3), updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, task.ID, cause.Error(), delay.Seconds())
	return err
}

// Abandon fails the task and its run and cancels whatever the run had left.
// The campaign row keeps the state of the last completed step.
func (r *DispatchRepo) Abandon(ctx context.Context, task *models.DispatchTask, cause error) error {
	msg := cause.Error()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_tasks
			SET status = 'failed', last_error = $2, locked_until = NULL, updated_at = now()
			WHERE id = $1
		`, task.ID, msg); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_runs
			SET status = 'failed', last_error = $2, finished_at = now(), updated_at = now()
			WHERE id = $1
		`, task.RunID, msg); err != nil {
			return err
		}
		return cancelRemaining(ctx, tx, task.RunID)
	})
}

func cancelRemaining(ctx context.Context, tx pgx.Tx, runID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE dispatch_tasks SET status = 'cancelled', locked_until = NULL, updated_at = now()
		WHERE run_id = $1 AND status = 'pending'
	`, runID)
	return err
}

// CompleteTask marks a leased task done. It reports false when the lease was
// lost to another worker.
func (r *DispatchRepo) CompleteTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_tasks
		SET status = 'done', completed_at = now(), locked_until = NULL, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, taskID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExtendLease pushes the lease of a running task forward. The attempt number
// identifies the lease holder: once the task is reclaimed the previous
// holder gets false and must stop.
func (r *DispatchRepo) ExtendLease(ctx context.Context, task *models.DispatchTask, lease time.Duration) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_tasks
		SET locked_until = now() + make_interval(secs => $3), updated_at = now()
		WHERE id = $1 AND status = 'running' AND attempts = $2
	`, task.ID, task.Attempts, lease.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type BatchTotals struct {
	Sent   int
	Failed int
}

// CommitBatch closes a send_batch task and adds its outcomes to the campaign
// counters in one transaction. The outcomes are counted from the contact rows
// stamped with the task id, so every attempt's partial work is included and
// the counters move exactly once per task. Only the current lease holder
// commits.
func (r *DispatchRepo) CommitBatch(ctx context.Context, task *models.DispatchTask) (BatchTotals, bool, error) {
	var totals BatchTotals
	committed := false

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE dispatch_tasks
			SET status = 'done', completed_at = now(), locked_until = NULL, updated_at = now()
			WHERE id = $1 AND status = 'running' AND attempts = $2
		`, task.ID, task.Attempts)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		err = tx.QueryRow(ctx, `
			SELECT
				COUNT(*) FILTER (WHERE message_id IS NOT NULL),
				COUNT(*) FILTER (WHERE message_id IS NULL AND status = 'failed')
			FROM campaign_contacts WHERE dispatch_task_id = $1
		`, task.ID).Scan(&totals.Sent, &totals.Failed)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE campaigns SET sent = sent + $2, failed = failed + $3, updated_at = now()
			WHERE id = $1
		`, task.CampaignID, totals.Sent, totals.Failed); err != nil {
			return err
		}
		committed = true
		return nil
	})
	return totals, committed, err
}

// StopRun ends a run early, cancelling its pending tasks.
func (r *DispatchRepo) StopRun(ctx context.Context, runID uuid.UUID, status string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_runs SET status = $2, finished_at = now(), updated_at = now()
			WHERE id = $1 AND finished_at IS NULL
		`, runID, status); err != nil {
			return err
		}
		return cancelRemaining(ctx, tx, runID)
	})
}

func (r *DispatchRepo) FinishRun(ctx context.Context, runID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_runs SET status = 'completed', finished_at = now(), updated_at = now()
		WHERE id = $1 AND finished_at IS NULL
	`, runID)
	return err
}
