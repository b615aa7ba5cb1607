// Package memory implements the coordination store on in-process maps with
// one mutex per league. Valid for a single-process deployment and for
// tests; the concurrency contract is the same one the Postgres store gives
// via row locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// Store implements draft.Store.
type Store struct {
	mu      sync.RWMutex
	leagues map[uuid.UUID]models.League
	members map[uuid.UUID][]models.Member
	picks   map[uuid.UUID][]models.Pick
	outbox  []events.Envelope

	lockMu      sync.Mutex
	leagueLocks map[uuid.UUID]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		leagues:     make(map[uuid.UUID]models.League),
		members:     make(map[uuid.UUID][]models.Member),
		picks:       make(map[uuid.UUID][]models.Pick),
		leagueLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) leagueLock(leagueID uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.leagueLocks[leagueID]
	if !ok {
		lock = &sync.Mutex{}
		s.leagueLocks[leagueID] = lock
	}
	return lock
}

// RunExclusive serializes callers on the league's mutex. No rollback: the
// engine treats a mid-unit failure as fatal for the request, and tests
// assert the units themselves never half-apply.
func (s *Store) RunExclusive(ctx context.Context, leagueID uuid.UUID, fn func(ctx context.Context, tx draft.Tx) error) error {
	lock := s.leagueLock(leagueID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, s)
}

func (s *Store) Leagues() draft.LeagueRepository { return (*leagueRepo)(s) }
func (s *Store) Members() draft.MemberRepository { return (*memberRepo)(s) }
func (s *Store) Picks() draft.PickRepository     { return (*pickRepo)(s) }
func (s *Store) Outbox() draft.OutboxRepository  { return (*outboxRepo)(s) }

// Events returns every outbox envelope recorded for the league, in commit
// order. Test helper; the Postgres store feeds these through the relay.
func (s *Store) Events(leagueID uuid.UUID) []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Envelope
	for _, env := range s.outbox {
		if env.LeagueID == leagueID {
			out = append(out, env)
		}
	}
	return out
}

type leagueRepo Store

func (r *leagueRepo) GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	league, ok := r.leagues[id]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", id, draft.ErrLeagueNotFound)
	}
	return &league, nil
}

func (r *leagueRepo) CreateLeague(ctx context.Context, id uuid.UUID, req draft.CreateLeagueRequest) (*models.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	league := models.League{
		ID:          id,
		Name:        req.Name,
		CreatorKey:  req.CreatorKey,
		Status:      models.LeagueStatusOpen,
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: req.TotalRounds,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.leagues[id] = league
	return &league, nil
}

func (r *leagueRepo) UpdateLeagueStatus(ctx context.Context, id uuid.UUID, status models.LeagueStatus, draftStartedAt *time.Time) (*models.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	league, ok := r.leagues[id]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", id, draft.ErrLeagueNotFound)
	}
	league.Status = status
	if league.DraftStartedAt == nil && draftStartedAt != nil {
		league.DraftStartedAt = draftStartedAt
	}
	league.UpdatedAt = time.Now().UTC()
	r.leagues[id] = league
	return &league, nil
}

type memberRepo Store

func (r *memberRepo) GetMemberByKey(ctx context.Context, leagueID uuid.UUID, participantKey string) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members[leagueID] {
		if m.ParticipantKey == participantKey {
			member := m
			return &member, nil
		}
	}
	return nil, fmt.Errorf("participant %s in league %s: %w", participantKey, leagueID, draft.ErrMemberNotFound)
}

func (r *memberRepo) ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]models.Member, len(r.members[leagueID]))
	copy(members, r.members[leagueID])
	return members, nil
}

func (r *memberRepo) CreateMember(ctx context.Context, req draft.CreateMemberRequest) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members[req.LeagueID] {
		if m.ParticipantKey == req.ParticipantKey {
			return nil, fmt.Errorf("participant %s: %w", req.ParticipantKey, draft.ErrAlreadyMember)
		}
	}
	member := models.Member{
		ID:             uuid.New(),
		LeagueID:       req.LeagueID,
		ParticipantKey: req.ParticipantKey,
		JoinedAt:       time.Now().UTC(),
	}
	r.members[req.LeagueID] = append(r.members[req.LeagueID], member)
	return &member, nil
}

func (r *memberRepo) AssignDraftOrder(ctx context.Context, leagueID uuid.UUID, orders map[uuid.UUID]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.members[leagueID]
	for memberID, order := range orders {
		assigned := false
		for i := range members {
			if members[i].ID != memberID {
				continue
			}
			if members[i].DraftOrder != nil {
				return fmt.Errorf("member %s already ordered: %w", memberID, draft.ErrInvariantViolation)
			}
			o := order
			members[i].DraftOrder = &o
			assigned = true
		}
		if !assigned {
			return fmt.Errorf("member %s missing: %w", memberID, draft.ErrInvariantViolation)
		}
	}
	return nil
}

type pickRepo Store

func (r *pickRepo) ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	picks := make([]models.Pick, len(r.picks[leagueID]))
	copy(picks, r.picks[leagueID])
	sort.Slice(picks, func(i, j int) bool { return picks[i].PickNumber < picks[j].PickNumber })
	return picks, nil
}

func (r *pickRepo) CountPicks(ctx context.Context, leagueID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.picks[leagueID]), nil
}

func (r *pickRepo) HasPick(ctx context.Context, leagueID uuid.UUID, marketID string, side models.OutcomeSide) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.picks[leagueID] {
		if p.MarketID == marketID && p.OutcomeSide == side {
			return true, nil
		}
	}
	return false, nil
}

func (r *pickRepo) CreatePick(ctx context.Context, req draft.CreatePickRequest) (*models.Pick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.picks[req.LeagueID] {
		if p.MarketID == req.MarketID && p.OutcomeSide == req.OutcomeSide {
			return nil, fmt.Errorf("%s %s: %w", req.MarketID, req.OutcomeSide, draft.ErrAlreadyTaken)
		}
		if p.PickNumber == req.PickNumber {
			return nil, fmt.Errorf("pick number %d taken: %w", req.PickNumber, draft.ErrInvariantViolation)
		}
	}
	pick := models.Pick{
		ID:          req.ID,
		LeagueID:    req.LeagueID,
		MemberID:    req.MemberID,
		MarketID:    req.MarketID,
		OutcomeSide: req.OutcomeSide,
		PickNumber:  req.PickNumber,
		Round:       req.Round,
		CreatedAt:   time.Now().UTC(),
	}
	r.picks[req.LeagueID] = append(r.picks[req.LeagueID], pick)
	return &pick, nil
}

func (r *pickRepo) GetLastPick(ctx context.Context, leagueID uuid.UUID) (*models.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	picks := r.picks[leagueID]
	if len(picks) == 0 {
		return nil, fmt.Errorf("league %s has no picks: %w", leagueID, draft.ErrPickNotFound)
	}
	last := picks[0]
	for _, p := range picks[1:] {
		if p.PickNumber > last.PickNumber {
			last = p
		}
	}
	return &last, nil
}

func (r *pickRepo) DeletePick(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for leagueID, picks := range r.picks {
		for i, p := range picks {
			if p.ID == id {
				r.picks[leagueID] = append(picks[:i:i], picks[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("pick %s: %w", id, draft.ErrPickNotFound)
}

type outboxRepo Store

func (r *outboxRepo) Insert(ctx context.Context, leagueID uuid.UUID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, events.Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		LeagueID:  leagueID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	return nil
}
