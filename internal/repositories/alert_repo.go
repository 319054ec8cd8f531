package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/models"
)

type AlertRepo struct {
	pool *pgxpool.Pool
}

func NewAlertRepo(pool *pgxpool.Pool) *AlertRepo {
	return &AlertRepo{pool: pool}
}

// Upsert writes the alert under its deterministic id. A repeat of the same
// code refreshes the message and reopens a dismissed alert.
func (r *AlertRepo) Upsert(ctx context.Context, a *models.AccountAlert) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO account_alerts (id, type, code, message, details, dismissed)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (id) DO UPDATE
		SET type = EXCLUDED.type, code = EXCLUDED.code, message = EXCLUDED.message,
		    details = EXCLUDED.details, dismissed = false, updated_at = now()
		RETURNING dismissed, created_at, updated_at
	`, a.ID, a.Type, a.Code, a.Message, a.Details,
	).Scan(&a.Dismissed, &a.CreatedAt, &a.UpdatedAt)
}

// DismissOpenByType closes every open alert of a category.
func (r *AlertRepo) DismissOpenByType(ctx context.Context, alertType string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account_alerts SET dismissed = true, updated_at = now()
		WHERE type = $1 AND dismissed = false
	`, alertType)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AlertRepo) Dismiss(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account_alerts SET dismissed = true, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AlertRepo) List(ctx context.Context, includeDismissed bool) ([]models.AccountAlert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, code, message, details, dismissed, created_at, updated_at
		FROM account_alerts
		WHERE $1 OR dismissed = false
		ORDER BY updated_at DESC
	`, includeDismissed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.AccountAlert
	for rows.Next() {
		var a models.AccountAlert
		if err := rows.Scan(&a.ID, &a.Type, &a.Code, &a.Message, &a.Details,
			&a.Dismissed, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
