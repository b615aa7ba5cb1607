// Package turn is the single definition of snake-draft turn order. The
// admission path on the server and the gateway's client-side state both
// derive the current holder through this package from the same two inputs
// (ordered members, pick count), so the answer can never drift between them.
package turn

import (
	"sort"

	"github.com/mcdev12/marketdraft/go/internal/models"
)

// HolderIndex returns the index into the ordered member list whose turn it
// is after pickCount picks. Even rounds run forward, odd rounds reverse.
func HolderIndex(n, pickCount int) int {
	round := pickCount / n
	pos := pickCount % n
	if round%2 == 0 {
		return pos
	}
	return n - 1 - pos
}

// Holder returns the member whose turn it is, given members sorted
// ascending by draft order. ok is false when the list is empty.
func Holder(ordered []models.Member, pickCount int) (models.Member, bool) {
	n := len(ordered)
	if n == 0 {
		return models.Member{}, false
	}
	return ordered[HolderIndex(n, pickCount)], true
}

// CurrentRound returns the one-based round the next pick falls in.
func CurrentRound(pickCount, n int) int {
	if n == 0 {
		return 0
	}
	return pickCount/n + 1
}

// IsComplete reports whether every round has been drafted.
func IsComplete(pickCount, n, totalRounds int) bool {
	return n > 0 && pickCount >= n*totalRounds
}

// Ordered returns the members holding an assigned draft order, sorted
// ascending by it. Members without an order cannot be drafting yet and are
// excluded.
func Ordered(members []models.Member) []models.Member {
	ordered := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.DraftOrder != nil {
			ordered = append(ordered, m)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return *ordered[i].DraftOrder < *ordered[j].DraftOrder
	})
	return ordered
}
