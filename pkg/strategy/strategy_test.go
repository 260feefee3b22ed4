package strategy

import (
	"testing"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.ChoiceSource = (*Random)(nil)
	_ ports.ChoiceSource = (*RoundRobin)(nil)
	_ ports.ChoiceSource = (*Replay)(nil)
)

func TestRandom_Deterministic(t *testing.T) {
	a, b := NewRandom(42), NewRandom(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Choose(7), b.Choose(7))
		require.Equal(t, a.Bool(), b.Bool())
	}
	assert.Equal(t, uint64(42), a.Seed())
}

func TestRandom_Bounds(t *testing.T) {
	r := NewRandom(1)
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		c := r.Choose(3)
		require.GreaterOrEqual(t, c, 0)
		require.Less(t, c, 3)
		seen[c] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 0, r.Choose(1))
	assert.Equal(t, 0, r.Choose(0))
}

func TestRoundRobin(t *testing.T) {
	r := NewRoundRobin()
	assert.Equal(t, []int{0, 1, 2, 0}, []int{r.Choose(3), r.Choose(3), r.Choose(3), r.Choose(3)})
	// shrinking the enabled set wraps around
	assert.Equal(t, 1, r.Choose(2))
	assert.Equal(t, 0, r.Choose(2))
	assert.True(t, r.Bool())
	assert.False(t, r.Bool())
}

func TestReplay(t *testing.T) {
	trace := []domain.Choice{
		{Kind: domain.ChoiceSchedule, Value: 2},
		{Kind: domain.ChoiceBool, Value: 1},
		{Kind: domain.ChoiceSchedule, Value: 0},
	}

	r := NewReplay(trace)
	assert.Equal(t, 2, r.Choose(3))
	assert.True(t, r.Bool())
	assert.Equal(t, 0, r.Choose(1))
	assert.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())

	assert.Equal(t, 0, r.Choose(4))
	var replayErr *ReplayError
	require.ErrorAs(t, r.Err(), &replayErr)
	assert.Equal(t, 3, replayErr.Index)
}

func TestReplay_Divergence(t *testing.T) {
	r := NewReplay([]domain.Choice{{Kind: domain.ChoiceSchedule, Value: 1}})
	assert.False(t, r.Bool())
	assert.ErrorContains(t, r.Err(), "want bool choice, recorded schedule")

	r = NewReplay([]domain.Choice{{Kind: domain.ChoiceSchedule, Value: 5}})
	assert.Equal(t, 0, r.Choose(2))
	assert.ErrorContains(t, r.Err(), "recorded index 5 with 2 enabled machines")
}
