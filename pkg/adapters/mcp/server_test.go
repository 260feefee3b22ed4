package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/driver"
	"github.com/aretw0/prt/pkg/dsl"
	"github.com/aretw0/prt/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEngine records the payloads it is run with and returns canned results.
type MockEngine struct {
	payloads []domain.Value
	runErr   error
}

func (m *MockEngine) Run(ctx context.Context, payload domain.Value) (*driver.Result, error) {
	m.payloads = append(m.payloads, payload)
	res := &driver.Result{RunID: "run-1", Outcome: driver.Outcome(m.runErr), Steps: 3}
	if m.runErr != nil {
		res.Checkpoint = "cp-1"
	}
	return res, m.runErr
}

func (m *MockEngine) Explore(ctx context.Context, payload domain.Value) (*driver.Exploration, error) {
	return &driver.Exploration{
		Runs:     4,
		Outcomes: map[string]int{"ok": 3, "bug": 1},
		Failure: &driver.Failure{
			Seed:   2,
			Result: &driver.Result{RunID: "run-2", Outcome: "bug", Checkpoint: "cp-2"},
			Err:    errors.New("boom"),
		},
	}, nil
}

func (m *MockEngine) Replay(ctx context.Context, id string) (*driver.Result, error) {
	if id != "cp-2" {
		return nil, domain.ErrCheckpointNotFound
	}
	return &driver.Result{RunID: "run-3", Outcome: "bug"}, errors.New("boom")
}

func (m *MockEngine) Machines() []domain.MachineRecord {
	return []domain.MachineRecord{{ID: "m-1", Type: "Clock", Phase: "idle"}}
}

func testServer(t *testing.T, engine Engine) *Server {
	t.Helper()
	tick := domain.MustEvent("tick", nil, domain.DefaultMaxInstances, false)
	b := dsl.New("Clock")
	b.Add("Stopped").Goto(tick, "Running")
	b.Add("Running").Goto(tick, "Stopped")
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(b.MustBuild()))
	return NewServer(engine, reg, "test", nil)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestHandleRun(t *testing.T) {
	engine := &MockEngine{}
	s := testServer(t, engine)
	ctx := context.Background()

	args := map[string]interface{}{"payload": `{"floor": 3}`}
	out, err := s.handleRun(ctx, callRequest(args), args)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Outcome)
	assert.Equal(t, 3, out.Steps)
	require.Len(t, out.Machines, 1)
	assert.Equal(t, map[string]any{"floor": float64(3)}, engine.payloads[0])

	args = map[string]interface{}{"payload": `{`}
	_, err = s.handleRun(ctx, callRequest(args), args)
	assert.ErrorContains(t, err, "invalid payload JSON")

	engine.runErr = &domain.UnhandledEventError{Machine: "m-1", State: "Stopped", Event: "tick"}
	out, err = s.handleRun(ctx, callRequest(nil), nil)
	require.NoError(t, err, "a failing run is a result, not a tool error")
	assert.Equal(t, "bug", out.Outcome)
	assert.Equal(t, "cp-1", out.Checkpoint)
	assert.Contains(t, out.Error, "unhandled")
}

func TestHandleExploreAndReplay(t *testing.T) {
	s := testServer(t, &MockEngine{})
	ctx := context.Background()

	exp, err := s.handleExplore(ctx, callRequest(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, exp.Runs)
	require.NotNil(t, exp.Seed)
	assert.Equal(t, uint64(2), *exp.Seed)
	assert.Equal(t, "cp-2", exp.Failure.Checkpoint)
	assert.Equal(t, "boom", exp.Failure.Error)

	args := map[string]interface{}{"checkpoint": "cp-2"}
	out, err := s.handleReplay(ctx, callRequest(args), args)
	require.NoError(t, err)
	assert.Equal(t, "run-3", out.RunID)
	assert.Equal(t, "boom", out.Error)

	args = map[string]interface{}{"checkpoint": "nope"}
	_, err = s.handleReplay(ctx, callRequest(args), args)
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	_, err = s.handleReplay(ctx, callRequest(nil), nil)
	assert.Error(t, err)
}

func TestHandleGraph(t *testing.T) {
	s := testServer(t, &MockEngine{})
	ctx := context.Background()

	res, err := s.handleGraph(ctx, callRequest(map[string]any{"machine_type": "Clock"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	text := res.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, `Stopped -- "tick" --> Running`)

	res, err = s.handleGraph(ctx, callRequest(map[string]any{"machine_type": "Lift"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGraph(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
