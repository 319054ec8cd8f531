package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/models"
)

type OptOutRepo struct {
	pool *pgxpool.Pool
}

func NewOptOutRepo(pool *pgxpool.Pool) *OptOutRepo {
	return &OptOutRepo{pool: pool}
}

// OptOut records that a phone refused marketing messages.
func (r *OptOutRepo) OptOut(ctx context.Context, phone string, code int, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts_opt_out (phone, code, reason) VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET code = EXCLUDED.code, reason = EXCLUDED.reason
	`, phone, code, reason)
	return err
}

func (r *OptOutRepo) List(ctx context.Context, limit int) ([]models.OptOut, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT phone, code, reason, created_at FROM contacts_opt_out
		ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OptOut
	for rows.Next() {
		var o models.OptOut
		if err := rows.Scan(&o.Phone, &o.Code, &o.Reason, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
