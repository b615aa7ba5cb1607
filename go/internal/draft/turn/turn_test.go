package turn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/marketdraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderedMembers(n int) []models.Member {
	members := make([]models.Member, n)
	for i := 0; i < n; i++ {
		order := i
		members[i] = models.Member{
			ID:         uuid.New(),
			DraftOrder: &order,
		}
	}
	return members
}

func TestHolderSnakeProperty(t *testing.T) {
	// For every pool size, the first 2n picks must be one full forward
	// pass followed by one full reverse pass.
	for n := 1; n <= 12; n++ {
		members := orderedMembers(n)

		for pick := 0; pick < 2*n; pick++ {
			holder, ok := Holder(members, pick)
			require.True(t, ok)

			want := pick
			if pick >= n {
				want = n - 1 - (pick - n)
			}
			assert.Equal(t, members[want].ID, holder.ID,
				"n=%d pick=%d", n, pick)
		}
	}
}

func TestHolderRepeatsAtRoundBoundary(t *testing.T) {
	// The snake reversal means the last picker of a round picks again
	// first in the next round.
	members := orderedMembers(4)

	last, ok := Holder(members, 3)
	require.True(t, ok)
	first, ok := Holder(members, 4)
	require.True(t, ok)
	assert.Equal(t, last.ID, first.ID)
}

func TestHolderEmptyList(t *testing.T) {
	_, ok := Holder(nil, 0)
	assert.False(t, ok)
}

func TestCurrentRound(t *testing.T) {
	cases := []struct {
		name      string
		pickCount int
		n         int
		want      int
	}{
		{"first pick", 0, 4, 1},
		{"last pick of round one", 3, 4, 1},
		{"first pick of round two", 4, 4, 2},
		{"pick seven of four members", 7, 4, 2},
		{"two members round three", 4, 2, 3},
		{"no members", 5, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CurrentRound(tc.pickCount, tc.n))
		})
	}
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(23, 4, 6))
	assert.True(t, IsComplete(24, 4, 6))
	assert.True(t, IsComplete(25, 4, 6))
	assert.False(t, IsComplete(0, 0, 6))
}

func TestOrderedSortsAndExcludesUnassigned(t *testing.T) {
	two, zero, one := 2, 0, 1
	members := []models.Member{
		{ID: uuid.New(), DraftOrder: &two},
		{ID: uuid.New()}, // not yet assigned
		{ID: uuid.New(), DraftOrder: &zero},
		{ID: uuid.New(), DraftOrder: &one},
	}

	ordered := Ordered(members)
	require.Len(t, ordered, 3)
	assert.Equal(t, 0, *ordered[0].DraftOrder)
	assert.Equal(t, 1, *ordered[1].DraftOrder)
	assert.Equal(t, 2, *ordered[2].DraftOrder)
}
