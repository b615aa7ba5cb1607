package models

import (
	"time"

	"github.com/google/uuid"
)

// LeagueStatus defines the lifecycle status of a league.
type LeagueStatus string

const (
	LeagueStatusOpen     LeagueStatus = "OPEN"
	LeagueStatusDrafting LeagueStatus = "DRAFTING"
	LeagueStatusActive   LeagueStatus = "ACTIVE"
	LeagueStatusEnded    LeagueStatus = "ENDED"
)

// DefaultTotalRounds is the fixed draft length applied when a league is
// created without an explicit round count.
const DefaultTotalRounds = 6

// League represents a prediction-market draft league.
type League struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	CreatorKey     string       `json:"creator_key"`
	Status         LeagueStatus `json:"status"`
	MaxPlayers     int          `json:"max_players"`
	TotalRounds    int          `json:"total_rounds"`
	DraftStartedAt *time.Time   `json:"draft_started_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
