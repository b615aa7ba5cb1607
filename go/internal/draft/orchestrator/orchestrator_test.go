package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/marketdraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/marketdraft/go/internal/markets"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

type allowAllMarkets struct{}

func (allowAllMarkets) Exists(ctx context.Context, marketID string) (bool, error) {
	return true, nil
}

// fixedStrategy always proposes the same pair. Deterministic stand-in for
// RandomStrategy in deadline tests.
type fixedStrategy struct {
	market string
	side   models.OutcomeSide
}

func (s fixedStrategy) Select(ctx context.Context, state *draft.DraftState) (string, models.OutcomeSide, error) {
	return s.market, s.side, nil
}

func newDraftingLeague(t *testing.T) (*draft.App, *memory.Store, *models.League) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	app := draft.NewApp(store, allowAllMarkets{})

	league, err := app.CreateLeague(ctx, draft.CreateLeagueRequest{
		Name:        "deadline league",
		CreatorKey:  "alice",
		MaxPlayers:  2,
		TotalRounds: 2,
	})
	require.NoError(t, err)
	_, err = app.JoinLeague(ctx, league.ID, "bob")
	require.NoError(t, err)
	_, err = app.StartDraft(ctx, league.ID, "alice")
	require.NoError(t, err)
	return app, store, league
}

func TestAutoPickOnDeadline(t *testing.T) {
	app, _, league := newDraftingLeague(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	o := orchestrator.NewWithClock(app, fixedStrategy{market: "mkt-auto", side: models.OutcomeSideYes}, orchestrator.Config{
		PickTimeout: 30 * time.Second,
		NumWorkers:  1,
	}, clock)
	go o.Run(ctx)

	require.NoError(t, o.HandleEvent(ctx, &events.Envelope{
		EventType: events.TypeDraftStarted,
		LeagueID:  league.ID,
	}))
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		state, err := app.GetDraftState(ctx, league.ID)
		return err == nil && state.PickCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Equal(t, "mkt-auto", state.Picks[0].MarketID)
	// The pick was made on the first holder's behalf.
	for _, m := range state.Members {
		if m.ID == state.Picks[0].MemberID {
			require.NotNil(t, m.DraftOrder)
			assert.Equal(t, 0, *m.DraftOrder)
		}
	}
}

func TestDeadlineRearmsOnPick(t *testing.T) {
	app, _, league := newDraftingLeague(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	o := orchestrator.NewWithClock(app, fixedStrategy{market: "mkt-auto", side: models.OutcomeSideYes}, orchestrator.Config{
		PickTimeout: 30 * time.Second,
		NumWorkers:  1,
	}, clock)
	go o.Run(ctx)

	// A human pick lands before the deadline; its event replaces the timer.
	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	_, err = app.SubmitPick(ctx, league.ID, state.TurnHolder.ParticipantKey, "mkt-human", models.OutcomeSideYes)
	require.NoError(t, err)

	require.NoError(t, o.HandleEvent(ctx, &events.Envelope{
		EventType: events.TypePickMade,
		LeagueID:  league.ID,
	}))
	clock.BlockUntil(1)
	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		state, err := app.GetDraftState(ctx, league.ID)
		return err == nil && state.PickCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	// The forced pick went to whoever held the next turn, not the human.
	state, err = app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state.Picks[0].MemberID, state.Picks[1].MemberID)
}

func TestDeadlineDisarmedWhenDraftingEnds(t *testing.T) {
	app, _, league := newDraftingLeague(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	o := orchestrator.NewWithClock(app, fixedStrategy{market: "mkt-auto", side: models.OutcomeSideYes}, orchestrator.Config{
		PickTimeout: 30 * time.Second,
		NumWorkers:  1,
	}, clock)
	go o.Run(ctx)

	require.NoError(t, o.HandleEvent(ctx, &events.Envelope{
		EventType: events.TypeDraftStarted,
		LeagueID:  league.ID,
	}))
	clock.BlockUntil(1)

	payload, err := json.Marshal(events.LeagueStatusChangedPayload{
		LeagueID:  league.ID.String(),
		OldStatus: string(models.LeagueStatusDrafting),
		NewStatus: string(models.LeagueStatusActive),
		ChangedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, o.HandleEvent(ctx, &events.Envelope{
		EventType: events.TypeLeagueStatusChanged,
		LeagueID:  league.ID,
		Payload:   payload,
	}))

	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Zero(t, state.PickCount)
}

func TestZeroTimeoutDisablesAutoPick(t *testing.T) {
	app, _, league := newDraftingLeague(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	o := orchestrator.NewWithClock(app, fixedStrategy{market: "mkt-auto", side: models.OutcomeSideYes}, orchestrator.Config{
		PickTimeout: 0,
	}, clock)
	go o.Run(ctx)

	require.NoError(t, o.HandleEvent(ctx, &events.Envelope{
		EventType: events.TypeDraftStarted,
		LeagueID:  league.ID,
	}))
	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)

	state, err := app.GetDraftState(ctx, league.ID)
	require.NoError(t, err)
	assert.Zero(t, state.PickCount)
}

type stubMarketSource struct {
	open []markets.Market
	err  error
}

func (s stubMarketSource) ListOpen(ctx context.Context, limit int) ([]markets.Market, error) {
	return s.open, s.err
}

func TestRandomStrategySkipsTakenPairs(t *testing.T) {
	src := stubMarketSource{open: []markets.Market{
		{ID: "mkt-a", Status: "open"},
		{ID: "mkt-b", Status: "open"},
	}}
	strat := orchestrator.NewRandomStrategy(src, 10)

	// Everything taken except mkt-b NO.
	state := &draft.DraftState{Picks: []models.Pick{
		{MarketID: "mkt-a", OutcomeSide: models.OutcomeSideYes},
		{MarketID: "mkt-a", OutcomeSide: models.OutcomeSideNo},
		{MarketID: "mkt-b", OutcomeSide: models.OutcomeSideYes},
	}}

	marketID, side, err := strat.Select(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "mkt-b", marketID)
	assert.Equal(t, models.OutcomeSideNo, side)
}

func TestRandomStrategyExhausted(t *testing.T) {
	src := stubMarketSource{open: []markets.Market{{ID: "mkt-a", Status: "open"}}}
	strat := orchestrator.NewRandomStrategy(src, 10)

	state := &draft.DraftState{Picks: []models.Pick{
		{MarketID: "mkt-a", OutcomeSide: models.OutcomeSideYes},
		{MarketID: "mkt-a", OutcomeSide: models.OutcomeSideNo},
	}}
	_, _, err := strat.Select(context.Background(), state)
	assert.Error(t, err)
}

func TestRandomStrategySourceError(t *testing.T) {
	src := stubMarketSource{err: errors.New("upstream down")}
	strat := orchestrator.NewRandomStrategy(src, 10)

	_, _, err := strat.Select(context.Background(), &draft.DraftState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list open markets")
}

func TestRandomStrategyValidPair(t *testing.T) {
	var open []markets.Market
	for i := 0; i < 5; i++ {
		open = append(open, markets.Market{ID: fmt.Sprintf("mkt-%d", i), Status: "open"})
	}
	strat := orchestrator.NewRandomStrategy(stubMarketSource{open: open}, 10)

	marketID, side, err := strat.Select(context.Background(), &draft.DraftState{})
	require.NoError(t, err)
	assert.True(t, side.Valid())
	assert.NotEmpty(t, marketID)
}
