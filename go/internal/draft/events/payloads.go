package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on a league's topic. Payloads carry raw state
// deltas only; observers recompute the turn holder themselves so there is
// exactly one formula for it.
const (
	TypeDraftStarted        = "draft_started"
	TypePickMade            = "pick_made"
	TypePickRevoked         = "pick_revoked"
	TypeMemberJoined        = "member_joined"
	TypeLeagueStatusChanged = "league_status_changed"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType string          `json:"event_type"`
	LeagueID  uuid.UUID       `json:"league_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MemberOrder is one member's assigned snake position.
type MemberOrder struct {
	MemberID       string `json:"member_id"`
	ParticipantKey string `json:"participant_key"`
	DraftOrder     int    `json:"draft_order"`
}

type DraftStartedPayload struct {
	LeagueID    string        `json:"league_id"`
	StartedAt   time.Time     `json:"started_at"`
	TotalRounds int           `json:"total_rounds"`
	Members     []MemberOrder `json:"members"`
}

type PickMadePayload struct {
	PickID         string    `json:"pick_id"`
	LeagueID       string    `json:"league_id"`
	MemberID       string    `json:"member_id"`
	ParticipantKey string    `json:"participant_key"`
	MarketID       string    `json:"market_id"`
	OutcomeSide    string    `json:"outcome_side"`
	PickNumber     int       `json:"pick_number"`
	Round          int       `json:"round"`
	PickedAt       time.Time `json:"picked_at"`
}

type PickRevokedPayload struct {
	PickID      string    `json:"pick_id"`
	LeagueID    string    `json:"league_id"`
	PickNumber  int       `json:"pick_number"`
	MarketID    string    `json:"market_id"`
	OutcomeSide string    `json:"outcome_side"`
	RevokedAt   time.Time `json:"revoked_at"`
}

type MemberJoinedPayload struct {
	MemberID       string    `json:"member_id"`
	LeagueID       string    `json:"league_id"`
	ParticipantKey string    `json:"participant_key"`
	JoinedAt       time.Time `json:"joined_at"`
}

type LeagueStatusChangedPayload struct {
	LeagueID  string    `json:"league_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}
