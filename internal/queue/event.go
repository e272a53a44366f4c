// Package queue defines the user lifecycle events exchanged over RabbitMQ,
// the publisher that emits them and the audit consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// UserEventsQueue is the durable queue carrying UserEvent messages.
const UserEventsQueue = "user.events"

const (
	UserRegistered = "user.registered"
	UserCreated    = "user.created"
	UserUpdated    = "user.updated"
	UserDeleted    = "user.deleted"
)

// UserEvent is published after a user is registered, created, updated or
// deleted.  It carries enough for downstream consumers to audit the change
// without querying the primary database.
type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	TenantID   *uint64   `json:"tenant_id,omitempty"`
	ActorID    uint64    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent stamps an event with a fresh id and the current time.
func NewUserEvent(typ string, userID uint64, email, role string, tenantID *uint64) UserEvent {
	return UserEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		Email:      email,
		Role:       role,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
	}
}
