package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one row of the draft outbox. ID is a monotonically increasing
// serial assigned at commit, so draining rows in ID order replays each
// league's changes in the order they were committed.
type Event struct {
	ID        int64           `json:"id"`
	EventID   uuid.UUID       `json:"event_id"`
	LeagueID  uuid.UUID       `json:"league_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Repository is what the relay needs from outbox storage.
type Repository interface {
	FetchUnsent(ctx context.Context, limit int32) ([]Event, error)
	MarkSent(ctx context.Context, id int64) error
}

// Publisher delivers one outbox event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
