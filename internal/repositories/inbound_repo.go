package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartzap/backend/internal/models"
)

type InboundRepo struct {
	pool *pgxpool.Pool
}

func NewInboundRepo(pool *pgxpool.Pool) *InboundRepo {
	return &InboundRepo{pool: pool}
}

// Save stores an inbound message. It reports false when the provider id was
// already stored.
func (r *InboundRepo) Save(ctx context.Context, m *models.InboundMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO inbound_messages (message_id, from_phone, type, body, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
	`, m.MessageID, m.FromPhone, m.Type, m.Body, m.Payload, m.ReceivedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
