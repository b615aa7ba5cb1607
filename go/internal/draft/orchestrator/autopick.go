package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/markets"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

// MarketSource lists candidate markets for forced picks.
type MarketSource interface {
	ListOpen(ctx context.Context, limit int) ([]markets.Market, error)
}

// RandomStrategy picks a uniformly random open market whose (market, side)
// pair the league has not claimed yet, preferring YES before NO on a given
// market.
type RandomStrategy struct {
	source MarketSource
	limit  int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomStrategy(source MarketSource, limit int) *RandomStrategy {
	if limit <= 0 {
		limit = 100
	}
	return &RandomStrategy{
		source: source,
		limit:  limit,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *RandomStrategy) Select(ctx context.Context, state *draft.DraftState) (string, models.OutcomeSide, error) {
	open, err := s.source.ListOpen(ctx, s.limit)
	if err != nil {
		return "", "", fmt.Errorf("list open markets: %w", err)
	}
	if len(open) == 0 {
		return "", "", fmt.Errorf("no open markets available")
	}

	taken := make(map[string]map[models.OutcomeSide]bool, len(state.Picks))
	for _, p := range state.Picks {
		if taken[p.MarketID] == nil {
			taken[p.MarketID] = make(map[models.OutcomeSide]bool, 2)
		}
		taken[p.MarketID][p.OutcomeSide] = true
	}

	s.mu.Lock()
	order := s.rng.Perm(len(open))
	s.mu.Unlock()

	for _, i := range order {
		market := open[i]
		for _, side := range []models.OutcomeSide{models.OutcomeSideYes, models.OutcomeSideNo} {
			if !taken[market.ID][side] {
				return market.ID, side, nil
			}
		}
	}
	return "", "", fmt.Errorf("all %d open markets fully claimed", len(open))
}
