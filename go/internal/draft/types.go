package draft

import (
	"github.com/google/uuid"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

type CreateLeagueRequest struct {
	Name        string `json:"name"`
	CreatorKey  string `json:"creator_key"`
	MaxPlayers  int    `json:"max_players"`
	TotalRounds int    `json:"total_rounds"`
}

type CreateMemberRequest struct {
	LeagueID       uuid.UUID `json:"league_id"`
	ParticipantKey string    `json:"participant_key"`
}

type CreatePickRequest struct {
	ID          uuid.UUID          `json:"id"`
	LeagueID    uuid.UUID          `json:"league_id"`
	MemberID    uuid.UUID          `json:"member_id"`
	MarketID    string             `json:"market_id"`
	OutcomeSide models.OutcomeSide `json:"outcome_side"`
	PickNumber  int                `json:"pick_number"`
	Round       int                `json:"round"`
}

// StartDraftResult reports the assigned order and who picks first.
type StartDraftResult struct {
	League          *models.League  `json:"league"`
	Members         []models.Member `json:"members"`
	FirstTurnHolder models.Member   `json:"first_turn_holder"`
}

// SubmitPickResult reports the committed pick plus what the caller needs
// to render the next turn. NextTurnHolder is nil once the draft completes.
type SubmitPickResult struct {
	Pick           *models.Pick   `json:"pick"`
	NextTurnHolder *models.Member `json:"next_turn_holder,omitempty"`
	Round          int            `json:"round"`
	IsComplete     bool           `json:"is_complete"`
}

type UndoResult struct {
	RemovedPick *models.Pick   `json:"removed_pick"`
	League      *models.League `json:"league"`
}

// DraftState is the full snapshot a client needs to derive the turn
// locally. TurnHolder is included for convenience but is always derived
// from Members and PickCount through the turn package, never stored.
type DraftState struct {
	League     *models.League  `json:"league"`
	Members    []models.Member `json:"members"`
	Picks      []models.Pick   `json:"picks"`
	PickCount  int             `json:"pick_count"`
	Round      int             `json:"round"`
	TurnHolder *models.Member  `json:"turn_holder,omitempty"`
	IsComplete bool            `json:"is_complete"`
}
