package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/prt/internal/logging"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("prt", reg)
	require.NoError(t, err)

	ctx := context.Background()
	h := m.Hooks()
	h.OnMachineCreated(ctx, &domain.MachineEvent{Machine: "a", MachineType: "Client"})
	h.OnStep(ctx, &domain.StepEvent{Machine: "a", MachineType: "Client", Reason: domain.ReasonSend})
	h.OnStep(ctx, &domain.StepEvent{Machine: "a", MachineType: "Client", Reason: domain.ReasonSend})
	h.OnSend(ctx, &domain.SendEvent{From: "a", To: "b", Event: "ping", Dropped: true})
	h.OnMachineHalted(ctx, &domain.MachineEvent{Machine: "a", MachineType: "Client"})
	m.ObserveRun(OutcomeOK, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Created.WithLabelValues("Client")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Steps.WithLabelValues("Client", "send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("ping", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Halted.WithLabelValues("Client")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(OutcomeOK)))

	count, err := testutil.GatherAndCount(reg, "prt_run_steps")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("prt", reg)
	require.NoError(t, err)
	_, err = NewMetrics("prt", reg)
	assert.Error(t, err)

	_, err = NewMetrics("prt", nil)
	assert.NoError(t, err)
}

func TestComposeHooks(t *testing.T) {
	var calls []string
	first := domain.LifecycleHooks{
		OnStep: func(context.Context, *domain.StepEvent) { calls = append(calls, "first") },
	}
	second := domain.LifecycleHooks{
		OnStep: func(context.Context, *domain.StepEvent) { calls = append(calls, "second") },
		OnSend: func(context.Context, *domain.SendEvent) { calls = append(calls, "send") },
	}

	h := ComposeHooks(first, domain.LifecycleHooks{}, second)
	h.OnStep(context.Background(), &domain.StepEvent{})
	h.OnSend(context.Background(), &domain.SendEvent{})

	assert.Equal(t, []string{"first", "second", "send"}, calls)
	assert.Nil(t, h.OnMachineCreated)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.FormatText, slog.LevelDebug)
	h := LoggingHooks(logger)

	h.OnStep(context.Background(), &domain.StepEvent{Machine: "m-1", State: "Init", Reason: domain.ReasonNondet, Step: 4})
	h.OnMachineHalted(context.Background(), &domain.MachineEvent{Machine: "m-1", MachineType: "Main"})

	out := buf.String()
	assert.True(t, strings.Contains(out, "reason=nondet"), out)
	assert.Contains(t, out, "machine_halted")
	assert.Contains(t, out, "step=4")
}
