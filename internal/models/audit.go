package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorOperator = "operator"
	ActorSystem   = "system"
	ActorWorker   = "worker"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	ActorType  string     `json:"actor_type"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Meta       any        `json:"meta,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
