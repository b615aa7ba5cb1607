package models

import (
	"time"

	"github.com/google/uuid"
)

// Member represents a participant in a league. ParticipantKey is the
// wallet-style address the session layer authenticated.
type Member struct {
	ID             uuid.UUID `json:"id"`
	LeagueID       uuid.UUID `json:"league_id"`
	ParticipantKey string    `json:"participant_key"`
	// DraftOrder is nil until the draft starts, then fixed forever.
	DraftOrder *int      `json:"draft_order,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
}
