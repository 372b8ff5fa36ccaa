package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/crackle"
	"github.com/aretw0/crackle/internal/config"
	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/adapters/process"
	redisAdapter "github.com/aretw0/crackle/pkg/adapters/redis"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/observability"
	"github.com/aretw0/crackle/pkg/persistence/middleware"
	"github.com/aretw0/crackle/pkg/ports"
	"github.com/aretw0/crackle/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// faultStore is where a stack keeps its faults.
type faultStore interface {
	ports.FaultReporter
	ports.FaultLister
}

// Stack is an engine wired with the CLI's observability and storage.
type Stack struct {
	Engine   *crackle.Engine
	Tracker  *observability.Tracker
	Registry *prometheus.Registry
	Faults   faultStore
	Endpoint ports.Endpoint

	closers []func() error
}

// Close releases the connections opened for the stack.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// resolveTarget returns the state model of the configured target and the
// endpoint it runs against: the configured process, or the target's own.
func resolveTarget(cfg config.Run, reg *registry.Registry, logger *slog.Logger) (*domain.StateModel, ports.Endpoint, error) {
	tgt, err := reg.Get(cfg.Target)
	if err != nil {
		return nil, nil, err
	}
	sm, err := tgt.StateModel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build state model of %s: %w", tgt.Name, err)
	}

	if cfg.Process.Command != "" {
		ep := process.NewEndpoint(process.Config{
			Command:     cfg.Process.Command,
			Args:        cfg.Process.Args,
			Environment: cfg.Process.Env,
			Dir:         cfg.Process.Dir,
		}, process.WithLogger(logger))
		return sm, ep, nil
	}
	ep, err := tgt.Endpoint()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create endpoint of %s: %w", tgt.Name, err)
	}
	return sm, ep, nil
}

// createStack initializes an engine with standard CLI conventions: log,
// metrics and progress hooks, and redis-backed slurps, faults and locking
// when a redis address is configured.
func createStack(cfg config.Run, reg *registry.Registry, logger *slog.Logger) (*Stack, error) {
	sm, ep, err := resolveTarget(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	s := &Stack{
		Tracker:  observability.NewTracker(),
		Registry: prometheus.NewRegistry(),
		Endpoint: ep,
	}
	metrics, err := observability.NewMetrics(s.Registry)
	if err != nil {
		return nil, err
	}

	opts := []crackle.Option{
		crackle.WithName(cfg.Target),
		crackle.WithLogger(logger),
		crackle.WithLifecycleHooks(observability.LogHooks(logger)),
		crackle.WithLifecycleHooks(metrics.Hooks()),
		crackle.WithLifecycleHooks(s.Tracker.Hooks()),
		crackle.WithControlIteration(cfg.Control),
	}
	if cfg.ActionTimeout > 0 {
		opts = append(opts, crackle.WithActionTimeout(cfg.ActionTimeout))
	}
	if cfg.BestEffort {
		opts = append(opts, crackle.WithBestEffort())
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		s.closers = append(s.closers, client.Close)
		ropts := []redisAdapter.Option{redisAdapter.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			ropts = append(ropts, redisAdapter.WithPrefix(cfg.Redis.Prefix))
		}

		var cache ports.SlurpCache = redisAdapter.NewSlurpCache(client, ropts...)
		if key, _ := cfg.Redis.EncryptionKey(); key != nil {
			encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
			if err != nil {
				_ = s.Close()
				return nil, err
			}
			cache = encrypt(cache)
		}

		s.Faults = redisAdapter.NewFaultLog(client, ropts...)
		opts = append(opts,
			crackle.WithSlurpCache(cache),
			crackle.WithLocker(redisAdapter.NewLocker(client, ropts...), 0),
		)
		logger.Debug("redis backend enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	} else {
		s.Faults = memory.NewFaultLog()
	}
	opts = append(opts, crackle.WithFaultReporter(s.Faults))

	eng, err := crackle.New(sm, ep, opts...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	s.Engine = eng
	return s, nil
}
