// Package orchestrator enforces an optional per-pick deadline from outside
// the engine. It observes league events, arms one timer per drafting
// league, and when the timer fires submits a pick on the holder's behalf
// through the same admission path as any caller, so it can lose races and
// never corrupts state. The engine itself has no pick clock.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// Engine is what the orchestrator needs from the draft engine.
type Engine interface {
	GetDraftState(ctx context.Context, leagueID uuid.UUID) (*draft.DraftState, error)
	SubmitPick(ctx context.Context, leagueID uuid.UUID, requesterKey, marketID string, side models.OutcomeSide) (*draft.SubmitPickResult, error)
}

// AutoPickStrategy chooses the (market, side) pair for a forced pick.
type AutoPickStrategy interface {
	Select(ctx context.Context, state *draft.DraftState) (marketID string, side models.OutcomeSide, err error)
}

type Config struct {
	// PickTimeout is how long a holder may sit on a turn before the
	// orchestrator picks for them. Zero disables auto-picks entirely.
	PickTimeout time.Duration
	NumWorkers  int
}

func DefaultConfig() Config {
	return Config{
		PickTimeout: 0,
		NumWorkers:  4,
	}
}

type Orchestrator struct {
	engine Engine
	strat  AutoPickStrategy
	clock  clockwork.Clock
	cfg    Config

	workCh chan uuid.UUID

	timersMu sync.Mutex
	timers   map[uuid.UUID]clockwork.Timer
}

func New(engine Engine, strat AutoPickStrategy, cfg Config) *Orchestrator {
	return NewWithClock(engine, strat, cfg, clockwork.NewRealClock())
}

// NewWithClock exists so tests can drive deadlines with a fake clock.
func NewWithClock(engine Engine, strat AutoPickStrategy, cfg Config, clock clockwork.Clock) *Orchestrator {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultConfig().NumWorkers
	}
	return &Orchestrator{
		engine: engine,
		strat:  strat,
		clock:  clock,
		cfg:    cfg,
		workCh: make(chan uuid.UUID, cfg.NumWorkers*2),
		timers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// Run drains fired deadlines until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.PickTimeout <= 0 {
		log.Info().Msg("auto-pick disabled, orchestrator idle")
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case leagueID := <-o.workCh:
					o.autoPick(ctx, leagueID)
				}
			}
		}()
	}

	log.Info().
		Dur("pick_timeout", o.cfg.PickTimeout).
		Int("workers", o.cfg.NumWorkers).
		Msg("orchestrator started")

	<-ctx.Done()
	o.cancelAll()
	wg.Wait()
	return nil
}

// HandleEvent implements events.Sink. Every committed pick (or revert to
// drafting) re-arms the league's deadline; leaving DRAFTING disarms it.
func (o *Orchestrator) HandleEvent(ctx context.Context, env *events.Envelope) error {
	if o.cfg.PickTimeout <= 0 {
		return nil
	}

	switch env.EventType {
	case events.TypeDraftStarted, events.TypePickMade, events.TypePickRevoked:
		o.schedule(ctx, env.LeagueID)
	case events.TypeLeagueStatusChanged:
		var p events.LeagueStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.EventType, err)
		}
		if models.LeagueStatus(p.NewStatus) == models.LeagueStatusDrafting {
			o.schedule(ctx, env.LeagueID)
		} else {
			o.cancel(env.LeagueID)
		}
	}
	return nil
}

func (o *Orchestrator) schedule(ctx context.Context, leagueID uuid.UUID) {
	timer := o.clock.NewTimer(o.cfg.PickTimeout)

	o.timersMu.Lock()
	if old, ok := o.timers[leagueID]; ok {
		old.Stop()
	}
	o.timers[leagueID] = timer
	o.timersMu.Unlock()

	go func() {
		select {
		case <-timer.Chan():
			o.removeTimer(leagueID, timer)
			select {
			case o.workCh <- leagueID:
			default:
				log.Warn().Str("league_id", leagueID.String()).Msg("timer fired but work channel full")
			}
		case <-ctx.Done():
			timer.Stop()
			o.removeTimer(leagueID, timer)
		}
	}()

	log.Debug().
		Str("league_id", leagueID.String()).
		Dur("timeout", o.cfg.PickTimeout).
		Msg("pick deadline armed")
}

func (o *Orchestrator) cancel(leagueID uuid.UUID) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if timer, ok := o.timers[leagueID]; ok {
		timer.Stop()
		delete(o.timers, leagueID)
	}
}

func (o *Orchestrator) cancelAll() {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
}

// removeTimer drops the map entry only if it still points at this timer;
// a reschedule may have replaced it already.
func (o *Orchestrator) removeTimer(leagueID uuid.UUID, timer clockwork.Timer) {
	o.timersMu.Lock()
	defer o.timersMu.Unlock()
	if current, ok := o.timers[leagueID]; ok && current == timer {
		delete(o.timers, leagueID)
	}
}

func (o *Orchestrator) autoPick(ctx context.Context, leagueID uuid.UUID) {
	state, err := o.engine.GetDraftState(ctx, leagueID)
	if err != nil {
		log.Error().Err(err).Str("league_id", leagueID.String()).Msg("auto-pick: failed to load state")
		return
	}
	if state.League.Status != models.LeagueStatusDrafting || state.IsComplete || state.TurnHolder == nil {
		return
	}

	marketID, side, err := o.strat.Select(ctx, state)
	if err != nil {
		log.Error().Err(err).Str("league_id", leagueID.String()).Msg("auto-pick: strategy failed")
		return
	}

	result, err := o.engine.SubmitPick(ctx, leagueID, state.TurnHolder.ParticipantKey, marketID, side)
	if err != nil {
		// Losing to a just-in-time human pick is fine; the admission
		// guard rejected us and the next deadline re-arms off that pick.
		log.Warn().
			Err(err).
			Str("league_id", leagueID.String()).
			Str("participant", state.TurnHolder.ParticipantKey).
			Msg("auto-pick rejected")
		return
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Str("participant", state.TurnHolder.ParticipantKey).
		Str("market_id", marketID).
		Str("side", string(side)).
		Int("pick_number", result.Pick.PickNumber).
		Msg("auto-pick submitted")
}
