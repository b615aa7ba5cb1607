package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/draft/turn"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// LeagueState is the observer-side copy of one league: a snapshot plus the
// deltas applied as they arrive. The turn holder is never taken from the
// wire; it is recomputed here through the turn package from the same
// inputs the server used, so both sides always agree.
type LeagueState struct {
	mu      sync.RWMutex
	league  models.League
	members []models.Member
	picks   []models.Pick
}

// NewLeagueState seeds the state from a server snapshot.
func NewLeagueState(snapshot *draft.DraftState) *LeagueState {
	s := &LeagueState{
		league:  *snapshot.League,
		members: append([]models.Member(nil), snapshot.Members...),
		picks:   append([]models.Pick(nil), snapshot.Picks...),
	}
	return s
}

// Apply folds one committed change into the local copy. Events arrive
// at-least-once; every branch is idempotent.
func (s *LeagueState) Apply(env *events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.EventType {
	case events.TypeMemberJoined:
		var p events.MemberJoinedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		memberID, err := uuid.Parse(p.MemberID)
		if err != nil {
			return fmt.Errorf("decode %s member id: %w", env.EventType, err)
		}
		for _, m := range s.members {
			if m.ID == memberID {
				return nil
			}
		}
		s.members = append(s.members, models.Member{
			ID:             memberID,
			LeagueID:       env.LeagueID,
			ParticipantKey: p.ParticipantKey,
			JoinedAt:       p.JoinedAt,
		})

	case events.TypeDraftStarted:
		var p events.DraftStartedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		for _, mo := range p.Members {
			memberID, err := uuid.Parse(mo.MemberID)
			if err != nil {
				return fmt.Errorf("decode %s member id: %w", env.EventType, err)
			}
			for i := range s.members {
				if s.members[i].ID == memberID {
					order := mo.DraftOrder
					s.members[i].DraftOrder = &order
				}
			}
		}
		s.league.Status = models.LeagueStatusDrafting
		s.league.TotalRounds = p.TotalRounds
		startedAt := p.StartedAt
		s.league.DraftStartedAt = &startedAt

	case events.TypePickMade:
		var p events.PickMadePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		pickID, err := uuid.Parse(p.PickID)
		if err != nil {
			return fmt.Errorf("decode %s pick id: %w", env.EventType, err)
		}
		for _, existing := range s.picks {
			if existing.ID == pickID {
				return nil
			}
		}
		memberID, err := uuid.Parse(p.MemberID)
		if err != nil {
			return fmt.Errorf("decode %s member id: %w", env.EventType, err)
		}
		s.picks = append(s.picks, models.Pick{
			ID:          pickID,
			LeagueID:    env.LeagueID,
			MemberID:    memberID,
			MarketID:    p.MarketID,
			OutcomeSide: models.OutcomeSide(p.OutcomeSide),
			PickNumber:  p.PickNumber,
			Round:       p.Round,
			CreatedAt:   p.PickedAt,
		})

	case events.TypePickRevoked:
		var p events.PickRevokedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		pickID, err := uuid.Parse(p.PickID)
		if err != nil {
			return fmt.Errorf("decode %s pick id: %w", env.EventType, err)
		}
		for i, existing := range s.picks {
			if existing.ID == pickID {
				s.picks = append(s.picks[:i:i], s.picks[i+1:]...)
				break
			}
		}

	case events.TypeLeagueStatusChanged:
		var p events.LeagueStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		s.league.Status = models.LeagueStatus(p.NewStatus)

	default:
		return fmt.Errorf("unknown event type %q", env.EventType)
	}
	return nil
}

// Snapshot derives the current view. Holder, round and completion come out
// of the turn package, nowhere else.
func (s *LeagueState) Snapshot() draft.DraftState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := turn.Ordered(s.members)
	n := len(ordered)
	count := len(s.picks)

	league := s.league
	state := draft.DraftState{
		League:     &league,
		Members:    append([]models.Member(nil), s.members...),
		Picks:      append([]models.Pick(nil), s.picks...),
		PickCount:  count,
		Round:      turn.CurrentRound(count, n),
		IsComplete: turn.IsComplete(count, n, s.league.TotalRounds),
	}
	if s.league.Status == models.LeagueStatusDrafting && !state.IsComplete {
		if holder, ok := turn.Holder(ordered, count); ok {
			state.TurnHolder = &holder
		}
	}
	return state
}

// TurnHolder returns the member whose turn the observer currently
// believes it is.
func (s *LeagueState) TurnHolder() (models.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return turn.Holder(turn.Ordered(s.members), len(s.picks))
}
