package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/draft/turn"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// LeagueRepository defines what the app layer needs from the league repository.
type LeagueRepository interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	CreateLeague(ctx context.Context, id uuid.UUID, req CreateLeagueRequest) (*models.League, error)
	UpdateLeagueStatus(ctx context.Context, id uuid.UUID, status models.LeagueStatus, draftStartedAt *time.Time) (*models.League, error)
}

// MemberRepository defines what the app layer needs from the member repository.
type MemberRepository interface {
	GetMemberByKey(ctx context.Context, leagueID uuid.UUID, participantKey string) (*models.Member, error)
	ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error)
	CreateMember(ctx context.Context, req CreateMemberRequest) (*models.Member, error)
	AssignDraftOrder(ctx context.Context, leagueID uuid.UUID, orders map[uuid.UUID]int) error
}

// PickRepository defines what the app layer needs from the pick repository.
type PickRepository interface {
	ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.Pick, error)
	CountPicks(ctx context.Context, leagueID uuid.UUID) (int, error)
	HasPick(ctx context.Context, leagueID uuid.UUID, marketID string, side models.OutcomeSide) (bool, error)
	CreatePick(ctx context.Context, req CreatePickRequest) (*models.Pick, error)
	GetLastPick(ctx context.Context, leagueID uuid.UUID) (*models.Pick, error)
	DeletePick(ctx context.Context, id uuid.UUID) error
}

// OutboxRepository inserts change events in the same transaction as the
// write they describe, so the relay never publishes an uncommitted change.
type OutboxRepository interface {
	Insert(ctx context.Context, leagueID uuid.UUID, eventType string, payload []byte) error
}

// Tx bundles the repositories scoped to one exclusive unit.
type Tx interface {
	Leagues() LeagueRepository
	Members() MemberRepository
	Picks() PickRepository
	Outbox() OutboxRepository
}

// Store is the coordination store adapter. RunExclusive runs fn with
// serializable isolation against every other RunExclusive call for the same
// league; calls for different leagues do not block each other. The embedded
// Tx serves unsynchronized reads outside the exclusive region.
type Store interface {
	Tx
	RunExclusive(ctx context.Context, leagueID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
}

// MarketValidator is the read-only market-data provider lookup.
type MarketValidator interface {
	Exists(ctx context.Context, marketID string) (bool, error)
}

// App is the draft coordination engine: pick admission, league lifecycle,
// and the single writer path for League/Member/Pick state.
type App struct {
	store   Store
	markets MarketValidator
}

func NewApp(store Store, markets MarketValidator) *App {
	return &App{
		store:   store,
		markets: markets,
	}
}

// CreateLeague creates a league in OPEN status with the creator joined as
// its first member.
func (a *App) CreateLeague(ctx context.Context, req CreateLeagueRequest) (*models.League, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.CreatorKey) == "" {
		return nil, fmt.Errorf("league name and creator key are required: %w", ErrInvalidInput)
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = models.DefaultTotalRounds
	}
	if req.TotalRounds < 1 || req.MaxPlayers < 2 {
		return nil, fmt.Errorf("total_rounds=%d max_players=%d: %w", req.TotalRounds, req.MaxPlayers, ErrInvalidInput)
	}

	leagueID := uuid.New()
	var league *models.League
	err := a.store.RunExclusive(ctx, leagueID, func(ctx context.Context, tx Tx) error {
		var err error
		league, err = tx.Leagues().CreateLeague(ctx, leagueID, req)
		if err != nil {
			return fmt.Errorf("create league: %w", err)
		}

		member, err := tx.Members().CreateMember(ctx, CreateMemberRequest{
			LeagueID:       leagueID,
			ParticipantKey: req.CreatorKey,
		})
		if err != nil {
			return fmt.Errorf("join creator: %w", err)
		}
		return insertEvent(ctx, tx, leagueID, events.TypeMemberJoined, events.MemberJoinedPayload{
			MemberID:       member.ID.String(),
			LeagueID:       leagueID.String(),
			ParticipantKey: member.ParticipantKey,
			JoinedAt:       member.JoinedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Str("creator", league.CreatorKey).
		Int("total_rounds", league.TotalRounds).
		Msg("created league")
	return league, nil
}

// JoinLeague adds a participant to an OPEN league.
func (a *App) JoinLeague(ctx context.Context, leagueID uuid.UUID, participantKey string) (*models.Member, error) {
	if strings.TrimSpace(participantKey) == "" {
		return nil, fmt.Errorf("participant key is required: %w", ErrInvalidInput)
	}

	var member *models.Member
	err := a.store.RunExclusive(ctx, leagueID, func(ctx context.Context, tx Tx) error {
		league, err := tx.Leagues().GetLeague(ctx, leagueID)
		if err != nil {
			return err
		}
		if league.Status != models.LeagueStatusOpen {
			return fmt.Errorf("league is %s: %w", league.Status, ErrInvalidState)
		}

		members, err := tx.Members().ListMembers(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		for _, m := range members {
			if m.ParticipantKey == participantKey {
				return fmt.Errorf("participant %s: %w", participantKey, ErrAlreadyMember)
			}
		}
		if len(members) >= league.MaxPlayers {
			return fmt.Errorf("league has %d of %d players: %w", len(members), league.MaxPlayers, ErrLeagueFull)
		}

		member, err = tx.Members().CreateMember(ctx, CreateMemberRequest{
			LeagueID:       leagueID,
			ParticipantKey: participantKey,
		})
		if err != nil {
			return fmt.Errorf("create member: %w", err)
		}
		return insertEvent(ctx, tx, leagueID, events.TypeMemberJoined, events.MemberJoinedPayload{
			MemberID:       member.ID.String(),
			LeagueID:       leagueID.String(),
			ParticipantKey: member.ParticipantKey,
			JoinedAt:       member.JoinedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Str("participant", participantKey).
		Msg("member joined league")
	return member, nil
}

// StartDraft moves an OPEN league to DRAFTING: assigns every member a draft
// order from a uniformly random permutation and stamps draft_started_at.
// Order assignment and the status change are one exclusive unit, so a
// partially ordered league is never observable.
func (a *App) StartDraft(ctx context.Context, leagueID uuid.UUID, requesterKey string) (*StartDraftResult, error) {
	var result *StartDraftResult
	err := a.store.RunExclusive(ctx, leagueID, func(ctx context.Context, tx Tx) error {
		league, err := tx.Leagues().GetLeague(ctx, leagueID)
		if err != nil {
			return err
		}
		if league.CreatorKey != requesterKey {
			return fmt.Errorf("requester %s: %w", requesterKey, ErrForbidden)
		}
		if league.Status != models.LeagueStatusOpen {
			return fmt.Errorf("league is %s: %w", league.Status, ErrInvalidState)
		}

		members, err := tx.Members().ListMembers(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if len(members) < 2 {
			return fmt.Errorf("league has %d members: %w", len(members), ErrInsufficientMembers)
		}
		for _, m := range members {
			if m.DraftOrder != nil {
				return fmt.Errorf("member %s already ordered: %w", m.ParticipantKey, ErrAlreadyStarted)
			}
		}

		perm := rand.Perm(len(members))
		orders := make(map[uuid.UUID]int, len(members))
		for i := range members {
			order := perm[i]
			orders[members[i].ID] = order
			members[i].DraftOrder = &order
		}
		if err := tx.Members().AssignDraftOrder(ctx, leagueID, orders); err != nil {
			return fmt.Errorf("assign draft order: %w", err)
		}

		startedAt := time.Now().UTC()
		updated, err := tx.Leagues().UpdateLeagueStatus(ctx, leagueID, models.LeagueStatusDrafting, &startedAt)
		if err != nil {
			return fmt.Errorf("update league status: %w", err)
		}

		ordered := turn.Ordered(members)
		memberOrders := make([]events.MemberOrder, len(ordered))
		for i, m := range ordered {
			memberOrders[i] = events.MemberOrder{
				MemberID:       m.ID.String(),
				ParticipantKey: m.ParticipantKey,
				DraftOrder:     *m.DraftOrder,
			}
		}
		if err := insertEvent(ctx, tx, leagueID, events.TypeDraftStarted, events.DraftStartedPayload{
			LeagueID:    leagueID.String(),
			StartedAt:   startedAt,
			TotalRounds: updated.TotalRounds,
			Members:     memberOrders,
		}); err != nil {
			return err
		}

		result = &StartDraftResult{
			League:          updated,
			Members:         ordered,
			FirstTurnHolder: ordered[0],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Int("members", len(result.Members)).
		Str("first_turn", result.FirstTurnHolder.ParticipantKey).
		Msg("draft started")
	return result, nil
}

// SubmitPick admits one pick. The market-existence lookup runs before the
// exclusive region so a slow provider never extends lock hold time; turn
// ownership, uniqueness and the write itself are decided inside it.
func (a *App) SubmitPick(ctx context.Context, leagueID uuid.UUID, requesterKey, marketID string, side models.OutcomeSide) (*SubmitPickResult, error) {
	// Precondition reads outside the lock keep rejection reasons in their
	// documented order; everything load-bearing is re-checked inside.
	league, err := a.store.Leagues().GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Status != models.LeagueStatusDrafting {
		return nil, fmt.Errorf("league is %s: %w", league.Status, ErrDraftNotActive)
	}
	if _, err := a.store.Members().GetMemberByKey(ctx, leagueID, requesterKey); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, fmt.Errorf("participant %s: %w", requesterKey, ErrNotAMember)
		}
		return nil, err
	}
	if err := validatePickInput(marketID, side); err != nil {
		return nil, err
	}

	exists, err := a.markets.Exists(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("validate market %s: %w", marketID, err)
	}
	if !exists {
		return nil, fmt.Errorf("market %s: %w", marketID, ErrMarketNotFound)
	}

	var result *SubmitPickResult
	err = a.store.RunExclusive(ctx, leagueID, func(ctx context.Context, tx Tx) error {
		league, err := tx.Leagues().GetLeague(ctx, leagueID)
		if err != nil {
			return err
		}
		if league.Status != models.LeagueStatusDrafting {
			return fmt.Errorf("league is %s: %w", league.Status, ErrDraftNotActive)
		}
		member, err := tx.Members().GetMemberByKey(ctx, leagueID, requesterKey)
		if err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				return fmt.Errorf("participant %s: %w", requesterKey, ErrNotAMember)
			}
			return err
		}

		members, err := tx.Members().ListMembers(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		ordered := turn.Ordered(members)
		n := len(ordered)
		if n == 0 {
			return fmt.Errorf("drafting league has no ordered members: %w", ErrInvariantViolation)
		}

		count, err := tx.Picks().CountPicks(ctx, leagueID)
		if err != nil {
			return fmt.Errorf("count picks: %w", err)
		}
		if count > 0 {
			last, err := tx.Picks().GetLastPick(ctx, leagueID)
			if err != nil {
				return fmt.Errorf("get last pick: %w", err)
			}
			if last.PickNumber != count-1 {
				return fmt.Errorf("pick numbers not dense: count=%d last=%d: %w", count, last.PickNumber, ErrInvariantViolation)
			}
		}

		holder, ok := turn.Holder(ordered, count)
		if !ok {
			return fmt.Errorf("no turn holder computable: %w", ErrInvariantViolation)
		}
		if holder.ParticipantKey != requesterKey {
			return &TurnViolationError{Holder: holder}
		}

		taken, err := tx.Picks().HasPick(ctx, leagueID, marketID, side)
		if err != nil {
			return fmt.Errorf("check pick uniqueness: %w", err)
		}
		if taken {
			return fmt.Errorf("%s %s: %w", marketID, side, ErrAlreadyTaken)
		}

		if turn.IsComplete(count, n, league.TotalRounds) {
			return fmt.Errorf("%d picks made: %w", count, ErrDraftComplete)
		}

		pick, err := tx.Picks().CreatePick(ctx, CreatePickRequest{
			ID:          uuid.New(),
			LeagueID:    leagueID,
			MemberID:    member.ID,
			MarketID:    marketID,
			OutcomeSide: side,
			PickNumber:  count,
			Round:       turn.CurrentRound(count, n),
		})
		if err != nil {
			return fmt.Errorf("create pick: %w", err)
		}
		if err := insertEvent(ctx, tx, leagueID, events.TypePickMade, events.PickMadePayload{
			PickID:         pick.ID.String(),
			LeagueID:       leagueID.String(),
			MemberID:       member.ID.String(),
			ParticipantKey: member.ParticipantKey,
			MarketID:       pick.MarketID,
			OutcomeSide:    string(pick.OutcomeSide),
			PickNumber:     pick.PickNumber,
			Round:          pick.Round,
			PickedAt:       pick.CreatedAt,
		}); err != nil {
			return err
		}

		newCount := count + 1
		complete := turn.IsComplete(newCount, n, league.TotalRounds)
		var next *models.Member
		if complete {
			if err := a.transitionStatus(ctx, tx, league, models.LeagueStatusActive); err != nil {
				return err
			}
		} else {
			h, _ := turn.Holder(ordered, newCount)
			next = &h
		}

		result = &SubmitPickResult{
			Pick:           pick,
			NextTurnHolder: next,
			Round:          pick.Round,
			IsComplete:     complete,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Str("participant", requesterKey).
		Str("market_id", marketID).
		Str("side", string(side)).
		Int("pick_number", result.Pick.PickNumber).
		Bool("complete", result.IsComplete).
		Msg("pick submitted")
	return result, nil
}

// UndoLastPick removes the most recent pick in the league. Creator only.
// If a target pick id is supplied it must be the most recent pick. An
// ACTIVE league reverts to DRAFTING; this is the only path back.
func (a *App) UndoLastPick(ctx context.Context, leagueID uuid.UUID, requesterKey string, pickID *uuid.UUID) (*UndoResult, error) {
	var result *UndoResult
	err := a.store.RunExclusive(ctx, leagueID, func(ctx context.Context, tx Tx) error {
		league, err := tx.Leagues().GetLeague(ctx, leagueID)
		if err != nil {
			return err
		}
		if league.CreatorKey != requesterKey {
			return fmt.Errorf("requester %s: %w", requesterKey, ErrForbidden)
		}
		if league.Status == models.LeagueStatusEnded {
			return fmt.Errorf("league is %s: %w", league.Status, ErrInvalidState)
		}

		last, err := tx.Picks().GetLastPick(ctx, leagueID)
		if err != nil {
			return err
		}
		if pickID != nil && *pickID != last.ID {
			return fmt.Errorf("pick %s is not the most recent: %w", pickID, ErrNotLastPick)
		}

		if err := tx.Picks().DeletePick(ctx, last.ID); err != nil {
			return fmt.Errorf("delete pick: %w", err)
		}
		if err := insertEvent(ctx, tx, leagueID, events.TypePickRevoked, events.PickRevokedPayload{
			PickID:      last.ID.String(),
			LeagueID:    leagueID.String(),
			PickNumber:  last.PickNumber,
			MarketID:    last.MarketID,
			OutcomeSide: string(last.OutcomeSide),
			RevokedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}

		updated := league
		if league.Status == models.LeagueStatusActive {
			if err := a.transitionStatus(ctx, tx, league, models.LeagueStatusDrafting); err != nil {
				return err
			}
			updated, err = tx.Leagues().GetLeague(ctx, leagueID)
			if err != nil {
				return err
			}
		}

		result = &UndoResult{RemovedPick: last, League: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", result.RemovedPick.PickNumber).
		Msg("last pick removed")
	return result, nil
}

// GetDraftState assembles the current snapshot. Pure read; the turn holder
// is derived through the turn package, never read from storage.
func (a *App) GetDraftState(ctx context.Context, leagueID uuid.UUID) (*DraftState, error) {
	league, err := a.store.Leagues().GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	members, err := a.store.Members().ListMembers(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	picks, err := a.store.Picks().ListPicks(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}

	ordered := turn.Ordered(members)
	n := len(ordered)
	count := len(picks)

	state := &DraftState{
		League:     league,
		Members:    members,
		Picks:      picks,
		PickCount:  count,
		Round:      turn.CurrentRound(count, n),
		IsComplete: turn.IsComplete(count, n, league.TotalRounds),
	}
	if league.Status == models.LeagueStatusDrafting && !state.IsComplete {
		if holder, ok := turn.Holder(ordered, count); ok {
			state.TurnHolder = &holder
		}
	}
	return state, nil
}

// transitionStatus updates the league status and records the change event
// inside the caller's transaction.
func (a *App) transitionStatus(ctx context.Context, tx Tx, league *models.League, to models.LeagueStatus) error {
	if _, err := tx.Leagues().UpdateLeagueStatus(ctx, league.ID, to, nil); err != nil {
		return fmt.Errorf("update league status: %w", err)
	}
	return insertEvent(ctx, tx, league.ID, events.TypeLeagueStatusChanged, events.LeagueStatusChangedPayload{
		LeagueID:  league.ID.String(),
		OldStatus: string(league.Status),
		NewStatus: string(to),
		ChangedAt: time.Now().UTC(),
	})
}

func validatePickInput(marketID string, side models.OutcomeSide) error {
	if !side.Valid() {
		return fmt.Errorf("outcome side %q: %w", side, ErrInvalidInput)
	}
	trimmed := strings.TrimSpace(marketID)
	if trimmed == "" || trimmed != marketID || len(marketID) > 256 {
		return fmt.Errorf("market id %q: %w", marketID, ErrInvalidInput)
	}
	return nil
}

func insertEvent(ctx context.Context, tx Tx, leagueID uuid.UUID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if err := tx.Outbox().Insert(ctx, leagueID, eventType, data); err != nil {
		return fmt.Errorf("insert outbox %s: %w", eventType, err)
	}
	return nil
}
