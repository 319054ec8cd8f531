package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/db"
	"github.com/smartzap/backend/internal/models"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `
	id, name, status, template_name, template_variables, total_recipients,
	sent, delivered, read, failed, scheduled_at, started_at, completed_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.TemplateName, &c.TemplateVariables,
		&c.TotalRecipients, &c.Sent, &c.Delivered, &c.Read, &c.Failed,
		&c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, status, template_name, template_variables, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, c.Name, c.Status, c.TemplateName, c.TemplateVariables, c.ScheduledAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *CampaignRepo) GetStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM campaigns WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return "", notFound(err)
	}
	return status, nil
}

type CampaignFilter struct {
	Status *string
	Limit  int
	Offset int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// MarkSending moves a campaign into SENDING from any status a dispatch may
// start from. started_at is only set the first time.
func (r *CampaignRepo) MarkSending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = 'SENDING', started_at = COALESCE(started_at, now()), updated_at = now()
		WHERE id = $1 AND status IN ('DRAFT', 'SCHEDULED', 'SENDING')
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete finalizes a SENDING campaign. It reports the status written, or
// an empty string when the campaign was not SENDING (paused meanwhile).
func (r *CampaignRepo) Complete(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET status = CASE WHEN total_recipients > 0 AND failed = total_recipients
		                  THEN 'FAILED' ELSE 'COMPLETED' END,
		    completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'SENDING'
		RETURNING status
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

// IncrementStat bumps one counter column in a single statement.
func (r *CampaignRepo) IncrementStat(ctx context.Context, id uuid.UUID, field string) error {
	if !models.IsCampaignStat(field) {
		return fmt.Errorf("unknown campaign stat %q", field)
	}
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE campaigns SET %[1]s = %[1]s + 1, updated_at = now() WHERE id = $1`, field,
	), id)
	return err
}

func (r *CampaignRepo) RaiseRecipients(ctx context.Context, id uuid.UUID, total int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET total_recipients = GREATEST(total_recipients, $2,
		        (SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1)),
		    updated_at = now()
		WHERE id = $1
	`, id, total)
	return err
}

// UpdateStatus is a compare-and-set on status.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Duplicate copies a campaign into a new DRAFT named name, with zeroed
// counters. Its recipients are copied as pending; onlyFailed copies the
// failed ones only.
func (r *CampaignRepo) Duplicate(ctx context.Context, srcID uuid.UUID, name string, onlyFailed bool) (*models.Campaign, error) {
	var id uuid.UUID
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO campaigns (name, status, template_name, template_variables)
			SELECT $2, 'DRAFT', template_name, template_variables FROM campaigns WHERE id = $1
			RETURNING id
		`, srcID, name).Scan(&id)
		if err != nil {
			return notFound(err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_contacts (campaign_id, contact_id, phone, name, email, custom_fields, status)
			SELECT $2, contact_id, phone, name, email, custom_fields, 'pending'
			FROM campaign_contacts
			WHERE campaign_id = $1 AND (NOT $3 OR status = 'failed')
			ORDER BY created_at, phone
		`, srcID, id, onlyFailed); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE campaigns
			SET total_recipients = (SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1)
			WHERE id = $1
		`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *CampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'SCHEDULED' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}
