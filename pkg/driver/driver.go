package driver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/prt/internal/logging"
	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/checkpoint"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds a run when no explicit bound is configured.
const DefaultMaxSteps = 10000

const tracerName = "github.com/aretw0/prt/pkg/driver"

// Program resolves machine types by name. *registry.Registry satisfies it.
type Program interface {
	Definition(name string) (*runtime.Definition, bool)
}

// Driver schedules the machines of a program from a main machine until
// quiescence, a failure, or the step bound. A Driver only holds configuration:
// every run gets its own machines and may execute concurrently with others.
type Driver struct {
	program Program
	main    string

	maxSteps    int
	timeout     time.Duration
	liveness    bool
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	metrics     *observability.Metrics
	checkpoints *checkpoint.Manager
	tracer      trace.Tracer
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxSteps bounds the number of scheduled steps per run. Zero or less means DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(d *Driver) {
		d.maxSteps = n
	}
}

// WithTimeout bounds the wall-clock time of each run.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

// WithLiveness reports hot machines at quiescence as a *LivenessError.
func WithLiveness(enabled bool) Option {
	return func(d *Driver) {
		d.liveness = enabled
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithHooks adds lifecycle callbacks. Repeated calls compose.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Driver) {
		d.hooks = observability.ComposeHooks(d.hooks, hooks)
	}
}

// WithMetrics records run outcomes and lifecycle counters into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
		d.hooks = observability.ComposeHooks(d.hooks, m.Hooks())
	}
}

// WithCheckpoints saves a checkpoint for every run that ends in a bug or a liveness violation.
func WithCheckpoints(manager *checkpoint.Manager) Option {
	return func(d *Driver) {
		d.checkpoints = manager
	}
}

// WithTracerProvider sets the provider for run and step spans.
// Defaults to the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Driver) {
		d.tracer = tp.Tracer(tracerName)
	}
}

// New creates a driver whose runs start with a machine of type main.
func New(program Program, main string, opts ...Option) (*Driver, error) {
	if program == nil {
		return nil, fmt.Errorf("driver: program is required")
	}
	if _, ok := program.Definition(main); !ok {
		return nil, fmt.Errorf("driver: unknown main machine type %q", main)
	}
	d := &Driver{
		program:  program,
		main:     main,
		maxSteps: DefaultMaxSteps,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSteps <= 0 {
		d.maxSteps = DefaultMaxSteps
	}
	return d, nil
}

// Main returns the machine type every run starts with.
func (d *Driver) Main() string { return d.main }
