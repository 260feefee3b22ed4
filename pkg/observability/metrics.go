package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes reported through ObserveRun.
const (
	OutcomeOK       = "ok"
	OutcomePruned   = "pruned"
	OutcomeBug      = "bug"
	OutcomeLiveness = "liveness"
	OutcomeBound    = "bound"
	OutcomeCanceled = "canceled"
)

// Metrics holds the Prometheus collectors updated during runs.
type Metrics struct {
	Steps    *prometheus.CounterVec
	Sends    *prometheus.CounterVec
	Created  *prometheus.CounterVec
	Halted   *prometheus.CounterVec
	Runs     *prometheus.CounterVec
	RunSteps prometheus.Histogram
}

// NewMetrics creates the collectors under namespace and registers them with reg.
// A nil reg skips registration.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Scheduled machine steps by machine type and the continuation they ended on",
			},
			[]string{"machine_type", "reason"},
		),
		Sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Serviced sends by event; dropped sends targeted halted machines",
			},
			[]string{"event", "dropped"},
		),
		Created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "machines_created_total",
				Help:      "Machines created by type",
			},
			[]string{"machine_type"},
		),
		Halted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "machines_halted_total",
				Help:      "Machines halted by type",
			},
			[]string{"machine_type"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
		RunSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_steps",
				Help:      "Steps taken per run",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Steps, m.Sends, m.Created, m.Halted, m.Runs, m.RunSteps} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMachineCreated: func(_ context.Context, e *domain.MachineEvent) {
			m.Created.WithLabelValues(e.MachineType).Inc()
		},
		OnMachineHalted: func(_ context.Context, e *domain.MachineEvent) {
			m.Halted.WithLabelValues(e.MachineType).Inc()
		},
		OnStep: func(_ context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.MachineType, e.Reason.String()).Inc()
		},
		OnSend: func(_ context.Context, e *domain.SendEvent) {
			m.Sends.WithLabelValues(e.Event, strconv.FormatBool(e.Dropped)).Inc()
		},
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, steps int) {
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunSteps.Observe(float64(steps))
}
