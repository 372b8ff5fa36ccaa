package process

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
)

var (
	// ErrNotRunning is returned by I/O on a stopped target.
	ErrNotRunning = errors.New("target process is not running")
	// ErrUnknownMethod is returned for calls to methods missing from the config.
	ErrUnknownMethod = errors.New("method not configured")
	// ErrUnknownProperty is returned for properties never set.
	ErrUnknownProperty = errors.New("unknown property")
)

// DefaultIdleTimeout ends an input stream once data stopped arriving.
const DefaultIdleTimeout = 100 * time.Millisecond

const chunkSize = 4096

// Endpoint drives a local program over its stdin and stdout.
type Endpoint struct {
	cfg    Config
	idle   time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	proc    *running
	rest    []byte
	props   map[string]model.Value
	started int
}

type running struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	chunks chan []byte
	halted chan struct{}
	exited chan struct{}
}

// EndpointOption configures the Endpoint.
type EndpointOption func(*Endpoint)

// WithIdleTimeout sets how long an input stream waits for more data after
// the first byte before reporting end of input.
func WithIdleTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d > 0 {
			e.idle = d
		}
	}
}

// WithLogger sets the logger receiving the target's stderr.
func WithLogger(logger *slog.Logger) EndpointOption {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// NewEndpoint creates an endpoint for cfg. The process starts on the first
// Start, Open, Connect or Accept.
func NewEndpoint(cfg Config, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		cfg:    cfg,
		idle:   DefaultIdleTimeout,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		props:  make(map[string]model.Value),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Endpoint) environ(extra ...string) []string {
	env := make([]string, 0, len(e.cfg.Environment)+len(e.props)+len(extra))
	for k, v := range e.cfg.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range e.props {
		env = append(env, "CRACKLE_PROP_"+strings.ToUpper(k)+"="+string(v.AsBytes()))
	}
	return append(env, extra...)
}

// Start launches the target unless it is already running.
func (e *Endpoint) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		return nil
	}

	// The process outlives the action context that starts it.
	cmd := exec.Command(e.cfg.Command, e.cfg.Args...)
	cmd.Dir = e.cfg.Dir
	cmd.Env = append(cmd.Environ(), e.environ()...)
	cmd.Stderr = &logWriter{logger: e.logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", e.cfg.Command, err)
	}

	p := &running{cmd: cmd, stdin: stdin, chunks: make(chan []byte, 64), halted: make(chan struct{}), exited: make(chan struct{})}
	go p.pump(stdout)
	e.proc = p
	e.rest = nil
	e.started++
	e.logger.Debug("target started", "command", e.cfg.Command, "pid", cmd.Process.Pid)
	return nil
}

// pump forwards stdout until the process closes it, then reaps the process.
// Output read after Stop is discarded.
func (p *running) pump(stdout io.Reader) {
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			select {
			case p.chunks <- bytes.Clone(buf[:n]):
			case <-p.halted:
			}
		}
		if err != nil {
			break
		}
	}
	_ = p.cmd.Wait()
	close(p.exited)
}

// Stop closes stdin and waits for the target to exit, killing it when ctx
// ends first.
func (e *Endpoint) Stop(ctx context.Context) error {
	e.mu.Lock()
	p := e.proc
	e.proc = nil
	e.rest = nil
	e.mu.Unlock()
	if p == nil {
		return nil
	}

	close(p.halted)
	_ = p.stdin.Close()
	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-p.exited
		return nil
	}
}

// Open starts the target.
func (e *Endpoint) Open(ctx context.Context) error { return e.Start(ctx) }

// Connect starts the target.
func (e *Endpoint) Connect(ctx context.Context) error { return e.Start(ctx) }

// Accept starts the target.
func (e *Endpoint) Accept(ctx context.Context) error { return e.Start(ctx) }

// Close stops the target, unblocking pending input.
func (e *Endpoint) Close(ctx context.Context) error { return e.Stop(ctx) }

func (e *Endpoint) current() (*running, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		return nil, ErrNotRunning
	}
	return e.proc, nil
}

// Output writes data to the target's stdin.
func (e *Endpoint) Output(ctx context.Context, data []byte) error {
	p, err := e.current()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := p.stdin.Write(data)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Input returns a stream over the target's stdout. The stream ends when the
// target exits or, once data arrived, after the idle timeout. Unread bytes
// are kept for the next Input.
func (e *Endpoint) Input(ctx context.Context) (io.ReadCloser, error) {
	p, err := e.current()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	buf := e.rest
	e.rest = nil
	e.mu.Unlock()
	return &stream{ctx: ctx, ep: e, proc: p, buf: buf, got: len(buf) > 0}, nil
}

var _ ports.Unreader = (*stream)(nil)

type stream struct {
	ctx  context.Context
	ep   *Endpoint
	proc *running
	buf  []byte
	got  bool
	once sync.Once
}

func (s *stream) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *stream) fill() error {
	var idle <-chan time.Time
	if s.got {
		timer := time.NewTimer(s.ep.idle)
		defer timer.Stop()
		idle = timer.C
	}
	select {
	case chunk := <-s.proc.chunks:
		s.buf, s.got = chunk, true
		return nil
	case <-idle:
		return io.EOF
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-s.proc.exited:
		// Drain what the pump forwarded before exiting.
		select {
		case chunk := <-s.proc.chunks:
			s.buf, s.got = chunk, true
			return nil
		default:
			return io.EOF
		}
	}
}

// Unread puts p back in front of the unread bytes.
func (s *stream) Unread(p []byte) {
	s.buf = append(bytes.Clone(p), s.buf...)
}

func (s *stream) Close() error {
	s.once.Do(func() {
		if len(s.buf) == 0 {
			return
		}
		s.ep.mu.Lock()
		if s.ep.proc == s.proc {
			s.ep.rest = append(bytes.Clone(s.buf), s.ep.rest...)
		}
		s.ep.mu.Unlock()
	})
	return nil
}

// Call runs a configured method once.
func (e *Endpoint) Call(ctx context.Context, method string, args []ports.CallArg) (*ports.CallResult, error) {
	m, ok := e.cfg.method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	var stdin bytes.Buffer
	env := make([]string, 0, len(args))
	for _, a := range args {
		if !a.Direction.Sends() {
			continue
		}
		stdin.Write(a.Data)
		env = append(env, "CRACKLE_ARG_"+strings.ToUpper(a.Name)+"="+hex.EncodeToString(a.Data))
	}

	cmd := exec.CommandContext(ctx, m.Command, m.Args...)
	cmd.Dir = e.cfg.Dir
	e.mu.Lock()
	cmd.Env = append(cmd.Environ(), e.environ(env...)...)
	e.mu.Unlock()
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("method %s failed: %w. Stderr: %s", method, err, strings.TrimSpace(stderr.String()))
	}
	return &ports.CallResult{Value: stdout.Bytes(), HasValue: true}, nil
}

// GetProperty returns a property set earlier. "pid" is the running
// target's process id.
func (e *Endpoint) GetProperty(ctx context.Context, name string) (model.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "pid" {
		if e.proc == nil {
			return model.Nil, ErrNotRunning
		}
		return model.Int(int64(e.proc.cmd.Process.Pid)), nil
	}
	v, ok := e.props[name]
	if !ok {
		return model.Nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return v, nil
}

// SetProperty stores a property. Properties reach the environment of
// processes started afterwards as CRACKLE_PROP_<NAME>.
func (e *Endpoint) SetProperty(ctx context.Context, name string, value model.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[name] = value
	return nil
}

// Starts returns how many times the target was launched.
func (e *Endpoint) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

var _ ports.Endpoint = (*Endpoint)(nil)

// logWriter forwards the target's stderr lines to the logger.
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Debug("target stderr", "line", line)
		}
	}
	return len(p), nil
}
