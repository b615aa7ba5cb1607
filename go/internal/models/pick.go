package models

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeSide is the side of a binary market a pick claims.
type OutcomeSide string

const (
	OutcomeSideYes OutcomeSide = "YES"
	OutcomeSideNo  OutcomeSide = "NO"
)

// Valid reports whether the side is one of the two binary outcomes.
func (s OutcomeSide) Valid() bool {
	return s == OutcomeSideYes || s == OutcomeSideNo
}

// Pick represents one member's claim on a (market, side) pair.
type Pick struct {
	ID          uuid.UUID   `json:"id"`
	LeagueID    uuid.UUID   `json:"league_id"`
	MemberID    uuid.UUID   `json:"member_id"`
	MarketID    string      `json:"market_id"`
	OutcomeSide OutcomeSide `json:"outcome_side"`
	// PickNumber is zero-based and dense per league: picks always number
	// 0..k-1 with no gaps.
	PickNumber int       `json:"pick_number"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"created_at"`
}
