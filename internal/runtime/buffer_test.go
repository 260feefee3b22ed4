package runtime

import (
	"testing"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idleMachine returns a machine whose only active state is s, without running any handler.
func idleMachine(s *State) *Machine {
	def := &Definition{Name: "T", Start: s.Name, States: map[domain.StateID]*State{s.Name: s}}
	m := NewMachine("t-1", def)
	m.states.PushStackFrame(s)
	m.phase = PhaseIdle
	return m
}

func TestEventBuffer_MaxInstancesExceeded(t *testing.T) {
	a := domain.MustEvent("A", nil, 1, false)
	b := NewEventBuffer()

	require.NoError(t, b.EnqueueEvent(a, nil))
	err := b.EnqueueEvent(a, nil)

	var maxErr *domain.MaxInstancesExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, "A", maxErr.Event)
	assert.Equal(t, 1, maxErr.Max)
	assert.Equal(t, 1, b.Size(), "failed enqueue must not change the buffer")
}

func TestEventBuffer_AssumeFailure(t *testing.T) {
	a := domain.MustEvent("A", nil, 2, true)
	b := NewEventBuffer()

	require.NoError(t, b.EnqueueEvent(a, nil))
	require.NoError(t, b.EnqueueEvent(a, nil))
	err := b.EnqueueEvent(a, nil)

	assert.ErrorIs(t, err, domain.ErrAssumeFailure)
	assert.Equal(t, 2, b.Count(a))
}

func TestEventBuffer_BoundNeverExceeded(t *testing.T) {
	for bound := 1; bound <= 4; bound++ {
		e := domain.MustEvent("E", nil, bound, bound%2 == 0)
		b := NewEventBuffer()
		for i := 0; i < bound; i++ {
			require.NoError(t, b.EnqueueEvent(e, i))
		}
		for i := 0; i < 3; i++ {
			assert.Error(t, b.EnqueueEvent(e, nil))
			assert.Equal(t, bound, b.Count(e))
		}
	}
}

func TestEventBuffer_Unbounded(t *testing.T) {
	e := domain.MustEvent("U", nil, domain.DefaultMaxInstances, false)
	b := NewEventBuffer()
	for i := 0; i < 100; i++ {
		require.NoError(t, b.EnqueueEvent(e, nil))
	}
	assert.Equal(t, 100, b.Size())
}

func TestEventBuffer_DequeueSkipsDeferred(t *testing.T) {
	a := domain.MustEvent("A", nil, domain.DefaultMaxInstances, false)
	bEv := domain.MustEvent("B", nil, domain.DefaultMaxInstances, false)
	s := &State{
		Name:     "S",
		Deferred: set.New(a),
		Dos:      map[*domain.Event]Fun{bEv: Skip},
	}
	m := idleMachine(s)

	require.NoError(t, m.buffer.EnqueueEvent(a, 1))
	require.NoError(t, m.buffer.EnqueueEvent(bEv, 2))
	require.NoError(t, m.buffer.EnqueueEvent(a, 3))

	require.True(t, m.buffer.IsEnabled(m))
	require.True(t, m.buffer.DequeueEvent(m))

	assert.Same(t, bEv, m.CurrentEvent())
	assert.Equal(t, 2, m.CurrentPayload())
	nodes := m.buffer.Nodes()
	require.Len(t, nodes, 2)
	assert.Same(t, a, nodes[0].Event)
	assert.Equal(t, 1, nodes[0].Payload)
	assert.Same(t, a, nodes[1].Event)
	assert.Equal(t, 3, nodes[1].Payload)
}

func TestEventBuffer_NoMatchLeavesStateUnchanged(t *testing.T) {
	a := domain.MustEvent("A", nil, domain.DefaultMaxInstances, false)
	m := idleMachine(&State{Name: "S", Deferred: set.New(a)})
	require.NoError(t, m.buffer.EnqueueEvent(a, nil))

	assert.False(t, m.buffer.IsEnabled(m))
	assert.False(t, m.buffer.DequeueEvent(m))
	assert.Nil(t, m.CurrentEvent())
	assert.Equal(t, 1, m.buffer.Size())
}

func TestEventBuffer_ReceiveFilterOverridesDeferral(t *testing.T) {
	a := domain.MustEvent("A", nil, domain.DefaultMaxInstances, false)
	bEv := domain.MustEvent("B", nil, domain.DefaultMaxInstances, false)
	m := idleMachine(&State{Name: "S", Deferred: set.New(a)})
	require.NoError(t, m.buffer.EnqueueEvent(bEv, nil))
	require.NoError(t, m.buffer.EnqueueEvent(a, nil))

	m.receive = set.New(a)
	require.True(t, m.buffer.DequeueEvent(m))
	assert.Same(t, a, m.CurrentEvent())
	assert.Equal(t, 1, m.buffer.Size())
}

func TestEventBuffer_IsEnabledAgreesWithDequeue(t *testing.T) {
	a := domain.MustEvent("A", nil, domain.DefaultMaxInstances, false)
	bEv := domain.MustEvent("B", nil, domain.DefaultMaxInstances, false)
	c := domain.MustEvent("C", nil, domain.DefaultMaxInstances, false)
	all := []*domain.Event{a, bEv, c}

	// every buffer of length <= 3 over {A,B,C}, every deferred subset, with and without a receive set
	var buffers [][]*domain.Event
	buffers = append(buffers, nil)
	for _, x := range all {
		buffers = append(buffers, []*domain.Event{x})
		for _, y := range all {
			buffers = append(buffers, []*domain.Event{x, y})
			for _, z := range all {
				buffers = append(buffers, []*domain.Event{x, y, z})
			}
		}
	}

	for mask := 0; mask < 8; mask++ {
		deferred := set.New[*domain.Event]()
		for i, e := range all {
			if mask&(1<<i) != 0 {
				deferred.Add(e)
			}
		}
		for _, receive := range []set.Set[*domain.Event]{nil, set.New(c)} {
			for _, contents := range buffers {
				m := idleMachine(&State{Name: "S", Deferred: deferred})
				m.receive = receive
				for _, e := range contents {
					require.NoError(t, m.buffer.EnqueueEvent(e, nil))
				}
				enabled := m.buffer.IsEnabled(m)
				before := m.buffer.Size()
				dequeued := m.buffer.DequeueEvent(m)

				assert.Equal(t, enabled, dequeued)
				if dequeued {
					assert.Equal(t, before-1, m.buffer.Size())
				} else {
					assert.Equal(t, before, m.buffer.Size())
				}
			}
		}
	}
}

func TestEventBuffer_Clone(t *testing.T) {
	a := domain.MustEvent("A", nil, domain.DefaultMaxInstances, false)
	b := NewEventBuffer()
	require.NoError(t, b.EnqueueEvent(a, map[string]any{"k": 1}))

	c := b.Clone()
	require.NoError(t, c.EnqueueEvent(a, nil))
	c.nodes[0].Payload.(map[string]any)["k"] = 2

	assert.Equal(t, 1, b.Size())
	assert.Equal(t, 1, b.nodes[0].Payload.(map[string]any)["k"])
}
