package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/crackle"
	"github.com/aretw0/crackle/internal/config"
	"github.com/aretw0/crackle/internal/presentation/tui"
	httpAdapter "github.com/aretw0/crackle/pkg/adapters/http"
	"github.com/aretw0/crackle/pkg/registry"
)

// RunOptions contains the command-line configuration of a run. Non-zero
// fields override the run file.
type RunOptions struct {
	ConfigPath  string
	Target      string
	Iterations  int
	Control     *int
	LogLevel    string
	MetricsAddr string
	RedisAddr   string
	JSON        bool
	Quiet       bool
	Out         io.Writer

	// Registry resolves target names. Nil uses the built-in targets.
	Registry *registry.Registry
}

// LoadConfig reads the run file and applies the overrides in opts.
func LoadConfig(opts RunOptions) (config.Run, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}
	if opts.Iterations > 0 {
		cfg.Iterations = opts.Iterations
	}
	if opts.Control != nil {
		cfg.Control = *opts.Control
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if opts.RedisAddr != "" {
		cfg.Redis.Addr = opts.RedisAddr
	}
	return cfg, cfg.Validate()
}

func (o RunOptions) registry() *registry.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return registry.Default()
}

// Run loads the configuration, runs the target and prints the report.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := createLogger(cfg.LogLevel, opts.Quiet || opts.JSON)
	if err != nil {
		return err
	}
	stack, err := createStack(cfg, opts.registry(), logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if cfg.MetricsAddr != "" {
		stop := startStatusServer(cfg.MetricsAddr, stack, logger)
		defer stop()
	}

	sum, runErr := stack.Engine.Run(ctx, cfg.Iterations)
	if err := printSummary(opts, sum); err != nil {
		return err
	}
	return handleExecutionError(runErr)
}

// Serve runs the target like Run and keeps the status server up until ctx
// is cancelled.
func Serve(ctx context.Context, opts RunOptions, addr string) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := createLogger(cfg.LogLevel, opts.Quiet)
	if err != nil {
		return err
	}
	stack, err := createStack(cfg, opts.registry(), logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	stop := startStatusServer(addr, stack, logger)
	defer stop()
	printSystemMessage(opts.out(), "Status server on %s", addr)

	sum, runErr := stack.Engine.Run(ctx, cfg.Iterations)
	if runErr == nil {
		printSystemMessage(opts.out(), "Run %s finished with %d faults. Serving until interrupted.", sum.RunID, len(sum.Faults))
		<-ctx.Done()
	}
	return handleExecutionError(runErr)
}

func (o RunOptions) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return io.Discard
}

func printSummary(opts RunOptions, sum *crackle.Summary) error {
	out := opts.out()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	if opts.Quiet {
		return nil
	}
	rendered, err := tui.NewRenderer()(tui.RunReport(sum))
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	fmt.Fprintln(out, tui.FaultSummary(sum))
	return nil
}

// startStatusServer serves the stack's status in the background and returns
// a function that shuts it down.
func startStatusServer(addr string, s *Stack, logger *slog.Logger) func() {
	srv := &http.Server{
		Addr: addr,
		Handler: httpAdapter.NewHandler(&httpAdapter.Server{
			Tracker:  s.Tracker,
			Faults:   s.Faults,
			Gatherer: s.Registry,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
	}
}
