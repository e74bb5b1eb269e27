package invoice

import (
	"encoding/json"
	"time"

	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
)

// EventKind names what happened to an invoice.
type EventKind string

const (
	EventRecognized        EventKind = "recognized"
	EventRecognitionFailed EventKind = "recognition_failed"
	EventAmended           EventKind = "amended"
	EventApproved          EventKind = "approved"
	EventRejected          EventKind = "rejected"
	EventScheduled         EventKind = "scheduled"
	EventPaid              EventKind = "paid"
	EventCancelled         EventKind = "cancelled"
	EventPosted            EventKind = "posted"
)

// Event is one record in the append-only per-invoice log. Every state
// transition, recognition result and posting emits one.
type Event struct {
	entity.BaseEntity

	InvoiceID id.ID     `db:"invoice_id" json:"invoiceId"`
	At        time.Time `db:"at" json:"at"`
	Kind      EventKind `db:"kind" json:"kind"`
	Actor     *string   `db:"actor" json:"actor,omitempty"`

	// Payload carries the delta as JSON
	Payload json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// NewEvent creates an event for an invoice.
func NewEvent(invoiceID id.ID, kind EventKind, actor string, payload map[string]any) *Event {
	e := &Event{
		BaseEntity: entity.NewBaseEntity(),
		InvoiceID:  invoiceID,
		At:         time.Now().UTC(),
		Kind:       kind,
	}
	if actor != "" {
		e.Actor = &actor
	}
	if payload != nil {
		// Payload keys are under our control; marshalling cannot fail
		raw, err := json.Marshal(payload)
		if err == nil {
			e.Payload = raw
		}
	}
	return e
}
