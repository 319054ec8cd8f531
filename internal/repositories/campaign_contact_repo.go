package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/models"
)

type CampaignContactRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignContactRepo(pool *pgxpool.Pool) *CampaignContactRepo {
	return &CampaignContactRepo{pool: pool}
}

const contactColumns = `
	id, campaign_id, contact_id, phone, name, email, custom_fields, status,
	message_id, dispatch_task_id, sent_at, delivered_at, read_at, failed_at,
	failure_code, failure_reason, created_at`

func scanContact(row rowScanner) (*models.CampaignContact, error) {
	var c models.CampaignContact
	err := row.Scan(&c.ID, &c.CampaignID, &c.ContactID, &c.Phone, &c.Name, &c.Email,
		&c.CustomFields, &c.Status, &c.MessageID, &c.DispatchTaskID, &c.SentAt,
		&c.DeliveredAt, &c.ReadAt, &c.FailedAt, &c.FailureCode, &c.FailureReason, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsurePending inserts a pending row per contact. Rows that already exist
// for the campaign and phone are left untouched.
func (r *CampaignContactRepo) EnsurePending(ctx context.Context, campaignID uuid.UUID, contacts []models.DispatchContact) error {
	if len(contacts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range contacts {
		c := c
		var email *string
		if c.Email != "" {
			email = &c.Email
		}
		batch.Queue(`
			INSERT INTO campaign_contacts (campaign_id, contact_id, phone, name, email, custom_fields, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending')
			ON CONFLICT (campaign_id, phone) DO NOTHING
		`, campaignID, c.ContactID, c.Phone, c.Name, email, c.CustomFields)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// StatusesByPhone returns the current status of each phone in the campaign.
func (r *CampaignContactRepo) StatusesByPhone(ctx context.Context, campaignID uuid.UUID, phones []string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT phone, status FROM campaign_contacts
		WHERE campaign_id = $1 AND phone = ANY($2)
	`, campaignID, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[string]string, len(phones))
	for rows.Next() {
		var phone, status string
		if err := rows.Scan(&phone, &status); err != nil {
			return nil, err
		}
		statuses[phone] = status
	}
	return statuses, rows.Err()
}

// ClaimForSend moves a pending contact to sending, stamped with the batch
// task. Only the caller that gets true may call the provider for it.
func (r *CampaignContactRepo) ClaimForSend(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts
		SET status = 'sending', dispatch_task_id = $3, claimed_at = now()
		WHERE campaign_id = $1 AND phone = $2 AND status = 'pending'
	`, campaignID, phone, taskID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseClaim returns a claimed contact to pending when its send never
// reached the provider.
func (r *CampaignContactRepo) ReleaseClaim(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts
		SET status = 'pending', dispatch_task_id = NULL, claimed_at = NULL
		WHERE campaign_id = $1 AND phone = $2 AND status = 'sending' AND dispatch_task_id = $3
	`, campaignID, phone, taskID)
	return err
}

// FailStaleSending fails the task's contacts claimed before the cutoff. Their
// sender died mid call, so delivery is unknown and they are not sent again.
func (r *CampaignContactRepo) FailStaleSending(ctx context.Context, taskID uuid.UUID, before time.Time, code int, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts
		SET status = 'failed', failed_at = now(), failure_code = $3, failure_reason = $4
		WHERE dispatch_task_id = $1 AND status = 'sending' AND claimed_at < $2
	`, taskID, before, code, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkSent records a successful send on a contact claimed by taskID.
func (r *CampaignContactRepo) MarkSent(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, messageID string, at time.Time) (bool, error) {
	return r.finishSend(ctx, taskID, "sent", `
		UPDATE campaign_contacts
		SET status = 'sent', message_id = $4, sent_at = $5
		WHERE campaign_id = $1 AND phone = $2 AND status = 'sending' AND dispatch_task_id = $3
	`, campaignID, phone, taskID, messageID, at)
}

func (r *CampaignContactRepo) MarkFailed(ctx context.Context, campaignID uuid.UUID, phone string, taskID uuid.UUID, code int, reason string, at time.Time) (bool, error) {
	return r.finishSend(ctx, taskID, "failed", `
		UPDATE campaign_contacts
		SET status = 'failed', failed_at = $6, failure_code = $4, failure_reason = $5
		WHERE campaign_id = $1 AND phone = $2 AND status = 'sending' AND dispatch_task_id = $3
	`, campaignID, phone, taskID, code, reason, at)
}

// finishSend applies a send outcome under a share lock on the batch task.
// CommitBatch counts the task's outcomes while holding that row, so an
// outcome written after the commit adds itself to the campaign counter.
func (r *CampaignContactRepo) finishSend(ctx context.Context, taskID uuid.UUID, counter, query string, args ...any) (bool, error) {
	updated := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var taskStatus string
		err := tx.QueryRow(ctx, `SELECT status FROM dispatch_tasks WHERE id = $1 FOR SHARE`, taskID).Scan(&taskStatus)
		if err != nil {
			return notFound(err)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		updated = true

		if taskStatus != models.TaskStatusDone {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE campaigns SET `+counter+` = `+counter+` + 1, updated_at = now()
			WHERE id = (SELECT campaign_id FROM dispatch_tasks WHERE id = $1)
		`, taskID)
		return err
	})
	return updated, err
}

func (r *CampaignContactRepo) ListPending(ctx context.Context, campaignID uuid.UUID) ([]models.DispatchContact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contactColumns+` FROM campaign_contacts
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at, phone
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.DispatchContact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c.AsDispatchContact())
	}
	return contacts, rows.Err()
}

type ContactFilter struct {
	Status *string
	Limit  int
	Offset int
}

func (r *CampaignContactRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, f ContactFilter) ([]models.CampaignContact, error) {
	query := `SELECT ` + contactColumns + ` FROM campaign_contacts WHERE campaign_id = $1`
	args := []any{campaignID}
	argIdx := 2

	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at, phone LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.CampaignContact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (r *CampaignContactRepo) GetByMessageID(ctx context.Context, messageID string) (*models.CampaignContact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM campaign_contacts WHERE message_id = $1`, messageID))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// The Transition* updates carry their guard in the WHERE clause; the bool
// reports whether this caller performed the transition.

func (r *CampaignContactRepo) TransitionDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts SET status = 'delivered', delivered_at = $2
		WHERE id = $1 AND status NOT IN ('delivered', 'read')
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignContactRepo) TransitionRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts SET status = 'read', read_at = $2
		WHERE id = $1 AND status <> 'read'
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignContactRepo) TransitionFailed(ctx context.Context, id uuid.UUID, at time.Time, code int, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_contacts
		SET status = 'failed', failed_at = $2, failure_code = $3, failure_reason = $4
		WHERE id = $1 AND status <> 'failed'
	`, id, at, code, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
