package crackle

import (
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/ports"
)

// DefaultLockTTL is how long a run lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Engine is the high-level entry point of the library. It owns a validated
// StateModel, its compiled data models and the endpoint they are sent to,
// and drives fuzzing iterations over them.
type Engine struct {
	runtime     *runtime.Engine
	runtimeOpts []runtime.EngineOption
	sm          *domain.StateModel
	endpoint    ports.Endpoint
	models      runtime.Models

	mutator  ports.Mutator
	reporter ports.FaultReporter
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	cache    ports.SlurpCache
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	control  int

	// Name identifies the target; it keys the run lock.
	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMutator sets the mutator applied to every non-control iteration.
func WithMutator(m ports.Mutator) Option {
	return func(e *Engine) {
		e.mutator = m
	}
}

// WithFaultReporter sets where faults are sent.
func WithFaultReporter(r ports.FaultReporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithSlurpCache shares slurp recordings through cache instead of the
// engine's private memory cache.
func WithSlurpCache(cache ports.SlurpCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithLocker serializes runs against the same target name.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithActionTimeout sets the timeout of actions that declare none.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDefaultTimeout(d))
	}
}

// WithBestEffort tolerates trailing bytes inside size-bounded regions.
func WithBestEffort() Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithBestEffort())
	}
}

// WithCrackerOptions passes options to every crack.
func WithCrackerOptions(opts ...cracker.Option) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCrackerOptions(opts...))
	}
}

// WithControlIteration sets which iteration runs unmutated and records
// slurps (default 0). A negative value disables the control iteration.
func WithControlIteration(n int) Option {
	return func(e *Engine) {
		e.control = n
	}
}

// WithName sets the target name used for locking and run reports.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New validates sm, compiles its models and prepares an engine driving
// endpoint. Validation failures are *domain.ConfigError values.
func New(sm *domain.StateModel, endpoint ports.Endpoint, opts ...Option) (*Engine, error) {
	eng := &Engine{
		sm:       sm,
		endpoint: endpoint,
		lockTTL:  DefaultLockTTL,
		Name:     sm.Name,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.cache == nil {
		eng.cache = memory.NewSlurpCache()
	}

	if err := runtime.Validate(sm); err != nil {
		return nil, err
	}
	models, err := runtime.CompileModels(sm)
	if err != nil {
		return nil, err
	}
	eng.models = models

	rtOpts := append([]runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithSlurpCache(eng.cache),
	}, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(endpoint, rtOpts...)
	return eng, nil
}

// StateModel returns the model the engine drives.
func (e *Engine) StateModel() *domain.StateModel { return e.sm }

// Models returns fresh copies of the compiled data models, keyed by
// "<state>.<action>.<model>".
func (e *Engine) Models() runtime.Models { return e.models.Clone() }
