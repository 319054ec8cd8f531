package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/models"
)

type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func (r *TemplateRepo) GetByName(ctx context.Context, name string) (*models.Template, error) {
	var t models.Template
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, category, language, status, components::text, created_at
		FROM templates WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.Category, &t.Language, &t.Status, &raw, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	t.Components, err = models.ParseTemplateComponents(raw)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return &t, nil
}

// Upsert stores a template definition as exported by the platform.
func (r *TemplateRepo) Upsert(ctx context.Context, name, category, language, status string, components []byte) error {
	if _, err := models.ParseTemplateComponents(components); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO templates (name, category, language, status, components)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (name) DO UPDATE
		SET category = EXCLUDED.category, language = EXCLUDED.language,
		    status = EXCLUDED.status, components = EXCLUDED.components
	`, name, category, language, status, string(components))
	return err
}
