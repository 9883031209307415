package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingDeleted   = "booking.deleted"
	EventBookingsCascaded = "booking.cascade_deleted"
)

// Event is the envelope published for every booking mutation. Keyed by
// room so consumers observe a single room's history in order, matching
// the per-room serialization of the conflict engine.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RoomID     string    `json:"room_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

func NewEvent(eventType, roomID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		RoomID:     roomID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
