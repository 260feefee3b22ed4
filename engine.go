package prt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/prt/internal/config"
	"github.com/aretw0/prt/pkg/adapters/file"
	httpAdapter "github.com/aretw0/prt/pkg/adapters/http"
	"github.com/aretw0/prt/pkg/adapters/memory"
	"github.com/aretw0/prt/pkg/adapters/redis"
	"github.com/aretw0/prt/pkg/checkpoint"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/driver"
	"github.com/aretw0/prt/pkg/observability"
	"github.com/aretw0/prt/pkg/persistence/middleware"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/aretw0/prt/pkg/strategy"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the high-level entry point: a program, a driver configured from
// Config, and the optional checkpoint store, metrics and introspection server
// the configuration asks for.
type Engine struct {
	program     *Program
	cfg         Config
	driver      *driver.Driver
	checkpoints *checkpoint.Manager
	store       ports.CheckpointStore
	metrics     *observability.Metrics
	registry    *prometheus.Registry
	server      *httpAdapter.Server
	redis       *redis.Store
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	mu   sync.Mutex
	last *driver.Run
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = observability.ComposeHooks(e.hooks, hooks)
	}
}

// WithLogger sets a custom structured logger instead of the one described by the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCheckpointStore overrides the store selected by the configuration. The
// configured redaction and encryption still wrap it.
func WithCheckpointStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// New initializes an Engine running main, the machine type every run starts with.
func New(program *Program, main string, opts ...Option) (*Engine, error) {
	e := &Engine{program: program, cfg: config.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		e.logger = e.cfg.Logger()
	}
	e.logger = e.logger.With("program", main)

	if err := e.openCheckpoints(); err != nil {
		return nil, err
	}

	driverOpts := []driver.Option{
		driver.WithMaxSteps(e.cfg.Driver.MaxSteps),
		driver.WithTimeout(e.cfg.Driver.Timeout),
		driver.WithLiveness(e.cfg.Driver.Liveness),
		driver.WithLogger(e.logger),
		driver.WithHooks(e.hooks),
	}
	if e.cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		m, err := observability.NewMetrics(e.cfg.Metrics.Namespace, e.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		e.metrics = m
		driverOpts = append(driverOpts, driver.WithMetrics(m))
	}
	if e.checkpoints != nil {
		driverOpts = append(driverOpts, driver.WithCheckpoints(e.checkpoints))
	}

	var serverOpts []httpAdapter.Option
	serverOpts = append(serverOpts, httpAdapter.WithLogger(e.logger))
	if e.registry != nil {
		serverOpts = append(serverOpts, httpAdapter.WithGatherer(e.registry))
	}
	e.server = httpAdapter.NewServer(program, serverOpts...)
	driverOpts = append(driverOpts, driver.WithHooks(e.server.Hooks()))

	d, err := driver.New(program, main, driverOpts...)
	if err != nil {
		return nil, err
	}
	e.driver = d
	return e, nil
}

func (e *Engine) openCheckpoints() error {
	cc := e.cfg.Checkpoint
	var store ports.CheckpointStore
	var mgrOpts []checkpoint.Option
	switch {
	case e.store != nil:
		store = e.store
	case cc.Store == "":
		return nil
	case cc.Store == "memory":
		store = memory.NewStore()
	case cc.Store == "file":
		store = file.New(cc.Dir)
	case cc.Store == "redis":
		opts := []redis.Option{redis.WithTTL(cc.Redis.TTL)}
		if cc.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cc.Redis.Prefix))
		}
		e.redis = redis.New(cc.Redis.Addr, cc.Redis.Password, cc.Redis.DB, opts...)
		store = e.redis
		mgrOpts = append(mgrOpts,
			checkpoint.WithLocker(redis.NewLocker(e.redis.Client(), "prt:lock:")),
			checkpoint.WithLockTTL(cc.Redis.LockTTL),
		)
	default:
		return fmt.Errorf("unknown checkpoint store %q", cc.Store)
	}
	var mws []middleware.Middleware
	if len(cc.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cc.Redact))
	}
	active, fallback, err := cc.Keys()
	if err != nil {
		return err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	mgrOpts = append(mgrOpts, checkpoint.WithLogger(e.logger))
	e.checkpoints = checkpoint.NewManager(middleware.Chain(store, mws...), mgrOpts...)
	return nil
}

func (e *Engine) source(seed uint64) ports.ChoiceSource {
	if e.cfg.Driver.Strategy == config.StrategyRoundRobin {
		return strategy.NewRoundRobin()
	}
	return strategy.NewRandom(seed)
}

// Run executes one run with the configured strategy and seed. While it runs,
// the introspection handler inspects it.
func (e *Engine) Run(ctx context.Context, payload Value) (*driver.Result, error) {
	run := e.driver.NewRun(e.source(e.cfg.Driver.Seed))
	e.mu.Lock()
	e.last = run
	e.mu.Unlock()
	e.server.Attach(run)
	return run.Execute(ctx, payload)
}

// Machines returns the records of the machines of the latest run started by Run.
func (e *Engine) Machines() []domain.MachineRecord {
	e.mu.Lock()
	run := e.last
	e.mu.Unlock()
	if run == nil {
		return nil
	}
	return run.Machines()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Program returns the program the engine runs.
func (e *Engine) Program() *Program {
	return e.program
}

// Explore executes the configured number of iterations with successive seeds.
func (e *Engine) Explore(ctx context.Context, payload Value) (*driver.Exploration, error) {
	return e.driver.Explore(ctx, driver.ExploreConfig{
		Iterations: e.cfg.Driver.Iterations,
		Workers:    e.cfg.Driver.Workers,
		Seed:       e.cfg.Driver.Seed,
		Strategy:   e.source,
		Payload:    payload,
	})
}

// Replay re-executes the run recorded in the checkpoint id.
func (e *Engine) Replay(ctx context.Context, id string) (*driver.Result, error) {
	return e.driver.ReplayCheckpoint(ctx, id)
}

// Checkpoints returns the checkpoint manager, or nil when checkpoints are disabled.
func (e *Engine) Checkpoints() *checkpoint.Manager {
	return e.checkpoints
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// Handler returns the introspection HTTP handler.
func (e *Engine) Handler() http.Handler {
	return e.server.Handler()
}

// Close releases the connections opened for the configuration.
func (e *Engine) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}
