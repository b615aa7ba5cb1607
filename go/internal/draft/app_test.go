package draft_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// stubMarkets admits every market id except the ones listed as missing.
type stubMarkets struct {
	missing map[string]bool
	err     error
}

func (s *stubMarkets) Exists(ctx context.Context, marketID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return !s.missing[marketID], nil
}

func newTestApp(t *testing.T) (*draft.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return draft.NewApp(store, &stubMarkets{}), store
}

// setupDrafting creates a league with the given participants and starts the
// draft. Returns the league and the members in draft order.
func setupDrafting(t *testing.T, app *draft.App, totalRounds int, participants ...string) (*models.League, []models.Member) {
	t.Helper()
	ctx := context.Background()

	league, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{
		Name:        "test league",
		CreatorKey:  participants[0],
		MaxPlayers:  len(participants),
		TotalRounds: totalRounds,
	})
	require.NoError(t, err)

	for _, p := range participants[1:] {
		_, err := app.JoinLeague(ctx, league.ID, p)
		require.NoError(t, err)
	}

	result, err := app.StartDraft(ctx, league.ID, participants[0])
	require.NoError(t, err)
	return result.League, result.Members
}

func TestCreateLeague(t *testing.T) {
	app, store := newTestApp(t)
	ctx := context.Background()

	league, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{
		Name:       "premier picks",
		CreatorKey: "alice",
		MaxPlayers: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusOpen, league.Status)
	assert.Equal(t, models.DefaultTotalRounds, league.TotalRounds)
	assert.Nil(t, league.DraftStartedAt)

	// The creator is already a member.
	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	require.Len(t, state.Members, 1)
	assert.Equal(t, "alice", state.Members[0].ParticipantKey)

	envs := store.Events(league.ID)
	require.Len(t, envs, 1)
	assert.Equal(t, events.TypeMemberJoined, envs[0].EventType)
}

func TestCreateLeagueValidation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	_, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{Name: "  ", CreatorKey: "alice", MaxPlayers: 4})
	assert.ErrorIs(t, err, draft.ErrInvalidInput)

	_, err = app.CreateLeague(ctx, draft.CreateLeagueRequest{Name: "x", CreatorKey: "alice", MaxPlayers: 1})
	assert.ErrorIs(t, err, draft.ErrInvalidInput)
}

func TestJoinLeague(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{
		Name:       "join cases",
		CreatorKey: "alice",
		MaxPlayers: 2,
	})
	require.NoError(t, err)

	_, err = app.JoinLeague(ctx, league.ID, "alice")
	assert.ErrorIs(t, err, draft.ErrAlreadyMember)

	_, err = app.JoinLeague(ctx, league.ID, "bob")
	require.NoError(t, err)

	_, err = app.JoinLeague(ctx, league.ID, "carol")
	assert.ErrorIs(t, err, draft.ErrLeagueFull)

	_, err = app.JoinLeague(ctx, uuid.New(), "dave")
	assert.ErrorIs(t, err, draft.ErrLeagueNotFound)

	_, err = app.StartDraft(ctx, league.ID, "alice")
	require.NoError(t, err)

	// No joining once the draft has begun.
	_, err = app.JoinLeague(ctx, league.ID, "carol")
	assert.ErrorIs(t, err, draft.ErrInvalidState)
}

func TestStartDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{
		Name:       "start cases",
		CreatorKey: "alice",
		MaxPlayers: 4,
	})
	require.NoError(t, err)

	// Alone, the creator cannot start.
	_, err = app.StartDraft(ctx, league.ID, "alice")
	assert.ErrorIs(t, err, draft.ErrInsufficientMembers)

	for _, p := range []string{"bob", "carol", "dave"} {
		_, err := app.JoinLeague(ctx, league.ID, p)
		require.NoError(t, err)
	}

	_, err = app.StartDraft(ctx, league.ID, "bob")
	assert.ErrorIs(t, err, draft.ErrForbidden)

	result, err := app.StartDraft(ctx, league.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusDrafting, result.League.Status)
	require.NotNil(t, result.League.DraftStartedAt)
	assert.Equal(t, result.Members[0].ParticipantKey, result.FirstTurnHolder.ParticipantKey)

	// The assignment is a bijection onto 0..n-1.
	seen := make(map[int]bool)
	for i, m := range result.Members {
		require.NotNil(t, m.DraftOrder)
		assert.Equal(t, i, *m.DraftOrder)
		assert.False(t, seen[*m.DraftOrder])
		seen[*m.DraftOrder] = true
	}

	_, err = app.StartDraft(ctx, league.ID, "alice")
	assert.ErrorIs(t, err, draft.ErrInvalidState)
}

func TestSubmitPickFullDraft(t *testing.T) {
	app, store := newTestApp(t)
	ctx := context.Background()

	const totalRounds = 6
	league, ordered := setupDrafting(t, app, totalRounds, "alice", "bob", "carol", "dave")
	n := len(ordered)

	var pickers []string
	for k := 0; k < n*totalRounds; k++ {
		state, err := app.GetDraftState(ctx, league.ID)
		require.NoError(t, err)
		require.NotNil(t, state.TurnHolder, "pick %d", k)

		result, err := app.SubmitPick(ctx, league.ID, state.TurnHolder.ParticipantKey, fmt.Sprintf("mkt-%d", k), models.OutcomeSideYes)
		require.NoError(t, err, "pick %d", k)
		assert.Equal(t, k, result.Pick.PickNumber)
		assert.Equal(t, k/n+1, result.Round)
		pickers = append(pickers, state.TurnHolder.ParticipantKey)
	}

	// Independently derived snake order: forward on even rounds, reversed
	// on odd ones.
	for k, got := range pickers {
		round, pos := k/n, k%n
		idx := pos
		if round%2 == 1 {
			idx = n - 1 - pos
		}
		assert.Equal(t, ordered[idx].ParticipantKey, got, "pick %d", k)
	}

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.Nil(t, state.TurnHolder)
	assert.Equal(t, models.LeagueStatusActive, state.League.Status)

	// Pick 25 has nowhere to go.
	_, err = app.SubmitPick(ctx, league.ID, "alice", "mkt-extra", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrDraftNotActive)

	// One status change event records OPEN never reappears after start.
	var statusChanges int
	for _, env := range store.Events(league.ID) {
		if env.EventType == events.TypeLeagueStatusChanged {
			statusChanges++
		}
	}
	assert.Equal(t, 1, statusChanges)
}

func TestSubmitPickOutOfTurn(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 2, "alice", "bob", "carol")
	notHolder := ordered[1].ParticipantKey

	_, err := app.SubmitPick(ctx, league.ID, notHolder, "mkt-1", models.OutcomeSideYes)
	require.ErrorIs(t, err, draft.ErrNotYourTurn)

	var tve *draft.TurnViolationError
	require.ErrorAs(t, err, &tve)
	assert.Equal(t, ordered[0].ParticipantKey, tve.Holder.ParticipantKey)

	// The rejection wrote nothing.
	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Zero(t, state.PickCount)
}

func TestSubmitPickRejections(t *testing.T) {
	store := memory.NewStore()
	mkts := &stubMarkets{missing: map[string]bool{"mkt-gone": true}}
	app := draft.NewApp(store, mkts)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 2, "alice", "bob")
	holder := ordered[0].ParticipantKey

	_, err := app.SubmitPick(ctx, uuid.New(), holder, "mkt-1", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrLeagueNotFound)

	_, err = app.SubmitPick(ctx, league.ID, "mallory", "mkt-1", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrNotAMember)

	_, err = app.SubmitPick(ctx, league.ID, holder, "mkt-1", models.OutcomeSide("MAYBE"))
	assert.ErrorIs(t, err, draft.ErrInvalidInput)

	_, err = app.SubmitPick(ctx, league.ID, holder, "  mkt-1", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrInvalidInput)

	_, err = app.SubmitPick(ctx, league.ID, holder, "mkt-gone", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrMarketNotFound)

	// Same (market, side) pair twice.
	_, err = app.SubmitPick(ctx, league.ID, holder, "mkt-1", models.OutcomeSideYes)
	require.NoError(t, err)
	_, err = app.SubmitPick(ctx, league.ID, ordered[1].ParticipantKey, "mkt-1", models.OutcomeSideYes)
	assert.ErrorIs(t, err, draft.ErrAlreadyTaken)

	// Opposite side of the same market is a distinct asset.
	_, err = app.SubmitPick(ctx, league.ID, ordered[1].ParticipantKey, "mkt-1", models.OutcomeSideNo)
	assert.NoError(t, err)
}

func TestSubmitPickProviderDown(t *testing.T) {
	store := memory.NewStore()
	mkts := &stubMarkets{err: errors.New("gateway timeout")}
	app := draft.NewApp(store, mkts)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 2, "alice", "bob")

	_, err := app.SubmitPick(ctx, league.ID, ordered[0].ParticipantKey, "mkt-1", models.OutcomeSideYes)
	require.Error(t, err)
	assert.NotErrorIs(t, err, draft.ErrMarketNotFound)

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Zero(t, state.PickCount)
}

func TestSubmitPickConcurrentSameTurn(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 2, "alice", "bob", "carol", "dave")
	holder := ordered[0].ParticipantKey

	// The holder races itself with distinct markets: exactly one pick may
	// land on pick number 0, the rest turn into out-of-turn rejections.
	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = app.SubmitPick(ctx, league.ID, holder, fmt.Sprintf("race-%d", i), models.OutcomeSideYes)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, draft.ErrNotYourTurn)
	}
	assert.Equal(t, 1, won)

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.PickCount)
}

func TestSubmitPickConcurrentDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	const totalRounds = 4
	league, ordered := setupDrafting(t, app, totalRounds, "alice", "bob", "carol")
	n := len(ordered)

	// Every member hammers the engine until the draft completes. Admission
	// must keep pick numbers dense and (market, side) pairs unique no
	// matter how the goroutines interleave.
	var wg sync.WaitGroup
	for _, m := range ordered {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; ; i++ {
				_, err := app.SubmitPick(ctx, league.ID, key, fmt.Sprintf("%s-%d", key, i), models.OutcomeSideYes)
				if errors.Is(err, draft.ErrDraftNotActive) || errors.Is(err, draft.ErrDraftComplete) {
					return
				}
			}
		}(m.ParticipantKey)
	}
	wg.Wait()

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	require.Equal(t, n*totalRounds, state.PickCount)
	assert.Equal(t, models.LeagueStatusActive, state.League.Status)

	pairs := make(map[string]bool)
	for i, p := range state.Picks {
		assert.Equal(t, i, p.PickNumber)
		key := p.MarketID + "/" + string(p.OutcomeSide)
		assert.False(t, pairs[key], "duplicate pair %s", key)
		pairs[key] = true
	}
}

func TestUndoLastPick(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 1, "alice", "bob")

	first, err := app.SubmitPick(ctx, league.ID, ordered[0].ParticipantKey, "mkt-1", models.OutcomeSideYes)
	require.NoError(t, err)

	_, err = app.UndoLastPick(ctx, league.ID, ordered[1].ParticipantKey, nil)
	assert.ErrorIs(t, err, draft.ErrForbidden)

	wrongID := uuid.New()
	_, err = app.UndoLastPick(ctx, league.ID, "alice", &wrongID)
	assert.ErrorIs(t, err, draft.ErrNotLastPick)

	undo, err := app.UndoLastPick(ctx, league.ID, "alice", &first.Pick.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Pick.ID, undo.RemovedPick.ID)

	// The turn rewound to the removed pick's holder, and the freed pair is
	// claimable again.
	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Zero(t, state.PickCount)
	require.NotNil(t, state.TurnHolder)
	assert.Equal(t, ordered[0].ParticipantKey, state.TurnHolder.ParticipantKey)

	_, err = app.SubmitPick(ctx, league.ID, ordered[0].ParticipantKey, "mkt-1", models.OutcomeSideYes)
	assert.NoError(t, err)

	_, err = app.UndoLastPick(ctx, uuid.New(), "alice", nil)
	assert.ErrorIs(t, err, draft.ErrLeagueNotFound)
}

func TestUndoReopensCompletedDraft(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 1, "alice", "bob")
	for k := 0; k < 2; k++ {
		state, err := app.GetDraftState(ctx, league.ID)
		require.NoError(t, err)
		_, err = app.SubmitPick(ctx, league.ID, state.TurnHolder.ParticipantKey, fmt.Sprintf("mkt-%d", k), models.OutcomeSideYes)
		require.NoError(t, err)
	}

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeagueStatusActive, state.League.Status)

	undo, err := app.UndoLastPick(ctx, league.ID, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusDrafting, undo.League.Status)

	// The last slot belongs to whoever made the removed pick.
	state, err = app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	require.NotNil(t, state.TurnHolder)
	assert.Equal(t, ordered[1].ParticipantKey, state.TurnHolder.ParticipantKey)
}

func TestUndoWithNoPicks(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	league, _ := setupDrafting(t, app, 1, "alice", "bob")
	_, err := app.UndoLastPick(ctx, league.ID, "alice", nil)
	assert.ErrorIs(t, err, draft.ErrPickNotFound)
}

func TestDraftEventsRecorded(t *testing.T) {
	app, store := newTestApp(t)
	ctx := context.Background()

	league, ordered := setupDrafting(t, app, 1, "alice", "bob")
	_, err := app.SubmitPick(ctx, league.ID, ordered[0].ParticipantKey, "mkt-1", models.OutcomeSideYes)
	require.NoError(t, err)
	_, err = app.UndoLastPick(ctx, league.ID, "alice", nil)
	require.NoError(t, err)

	var types []string
	for _, env := range store.Events(league.ID) {
		require.NotEqual(t, uuid.Nil, env.EventID)
		types = append(types, env.EventType)
	}
	assert.Equal(t, []string{
		events.TypeMemberJoined,
		events.TypeMemberJoined,
		events.TypeDraftStarted,
		events.TypePickMade,
		events.TypePickRevoked,
	}, types)
}
