// Package events carries lifecycle notifications out of the services.
// Services publish after a unit of work commits; delivery to sinks is
// asynchronous and never fails the operation that produced the event.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a lifecycle event.
type Type string

const (
	PropertySubmitted   Type = "property.submitted"
	PropertyResubmitted Type = "property.resubmitted"
	PropertyApproved    Type = "property.approved"
	PropertyRejected    Type = "property.rejected"
	PropertyDisabled    Type = "property.disabled"
	PropertyEnabled     Type = "property.enabled"
	PropertyVerified    Type = "property.verified"
	PropertyUnverified  Type = "property.unverified"
	PropertyStatus      Type = "property.status_changed"

	ApplicationSubmitted    Type = "application.submitted"
	ApplicationApproved     Type = "application.approved"
	ApplicationRejected     Type = "application.rejected"
	ApplicationAutoRejected Type = "application.auto_rejected"

	TransactionCreated    Type = "transaction.created"
	TransactionTerminated Type = "transaction.terminated"
	TransactionExpired    Type = "transaction.expired"

	ObligationPaid    Type = "obligation.paid"
	ObligationOverdue Type = "obligation.overdue"
)

// Event is one lifecycle notification.
type Event struct {
	OccurredAt  time.Time      `json:"occurredAt"`
	Payload     map[string]any `json:"payload,omitempty"`
	Type        Type           `json:"type"`
	ActorID     string         `json:"actorId"`
	ID          uuid.UUID      `json:"id"`
	AggregateID uuid.UUID      `json:"aggregateId"`
}

// New builds an event with a fresh id.
func New(t Type, aggregateID uuid.UUID, actorID string, at time.Time, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		AggregateID: aggregateID,
		ActorID:     actorID,
		OccurredAt:  at,
		Payload:     payload,
	}
}

// Publisher accepts events for delivery. Publish must not block on delivery.
type Publisher interface {
	Publish(events ...Event)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(...Event) {}
