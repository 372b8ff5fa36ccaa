package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
)

var (
	// ErrClosed is returned by Input and Output after Close.
	ErrClosed = errors.New("endpoint closed")
	// ErrUnknownProperty is returned by GetProperty for unset properties.
	ErrUnknownProperty = errors.New("unknown property")
)

// CallHandler answers Call on an Endpoint.
type CallHandler func(ctx context.Context, method string, args []ports.CallArg) (*ports.CallResult, error)

// Endpoint implements ports.Endpoint in memory. Inputs are served from a
// queue fed by WithInputs, Push or, in echo mode, by Output. Input blocks
// until data is queued, ctx is done or the endpoint is closed.
type Endpoint struct {
	mu      sync.Mutex
	pending [][]byte
	outputs [][]byte
	ops     []string
	props   map[string]model.Value
	failure map[string]error
	calls   CallHandler
	echo    bool
	closed  bool
	streams int
	notify  chan struct{}
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithEcho queues every output as the next input.
func WithEcho() EndpointOption {
	return func(e *Endpoint) { e.echo = true }
}

// WithInputs queues scripted inputs.
func WithInputs(inputs ...[]byte) EndpointOption {
	return func(e *Endpoint) {
		for _, in := range inputs {
			e.pending = append(e.pending, slices.Clone(in))
		}
	}
}

// WithCallHandler sets the handler answering Call.
func WithCallHandler(h CallHandler) EndpointOption {
	return func(e *Endpoint) { e.calls = h }
}

// WithProperty presets a property.
func WithProperty(name string, v model.Value) EndpointOption {
	return func(e *Endpoint) { e.props[name] = v }
}

// WithFailure makes the named operation ("output", "connect", ...) fail with err.
func WithFailure(op string, err error) EndpointOption {
	return func(e *Endpoint) { e.failure[op] = err }
}

// NewEndpoint creates an open in-memory endpoint.
func NewEndpoint(opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		props:   make(map[string]model.Value),
		failure: make(map[string]error),
		notify:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Push queues an input.
func (e *Endpoint) Push(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, slices.Clone(data))
	e.broadcast()
}

// broadcast wakes pending Input calls. Callers hold mu.
func (e *Endpoint) broadcast() {
	close(e.notify)
	e.notify = make(chan struct{})
}

func (e *Endpoint) lifecycle(op string, closed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, op)
	if err := e.failure[op]; err != nil {
		return err
	}
	e.closed = closed
	e.broadcast()
	return nil
}

func (e *Endpoint) Start(ctx context.Context) error   { return e.lifecycle("start", false) }
func (e *Endpoint) Stop(ctx context.Context) error    { return e.lifecycle("stop", true) }
func (e *Endpoint) Open(ctx context.Context) error    { return e.lifecycle("open", false) }
func (e *Endpoint) Close(ctx context.Context) error   { return e.lifecycle("close", true) }
func (e *Endpoint) Connect(ctx context.Context) error { return e.lifecycle("connect", false) }
func (e *Endpoint) Accept(ctx context.Context) error  { return e.lifecycle("accept", false) }

// Output records data, and queues it as input in echo mode.
func (e *Endpoint) Output(ctx context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, "output")
	if err := e.failure["output"]; err != nil {
		return err
	}
	if e.closed {
		return ErrClosed
	}
	e.outputs = append(e.outputs, slices.Clone(data))
	if e.echo {
		e.pending = append(e.pending, slices.Clone(data))
		e.broadcast()
	}
	return nil
}

// Input returns the next queued input as a stream.
func (e *Endpoint) Input(ctx context.Context) (io.ReadCloser, error) {
	for {
		e.mu.Lock()
		if err := e.failure["input"]; err != nil {
			e.mu.Unlock()
			return nil, err
		}
		if e.closed {
			e.mu.Unlock()
			return nil, ErrClosed
		}
		if len(e.pending) > 0 {
			data := e.pending[0]
			e.pending = e.pending[1:]
			e.ops = append(e.ops, "input")
			e.streams++
			e.mu.Unlock()
			return &stream{Reader: bytes.NewReader(data), ep: e}, nil
		}
		wait := e.notify
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

type stream struct {
	*bytes.Reader
	ep   *Endpoint
	once sync.Once
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.ep.mu.Lock()
		s.ep.streams--
		s.ep.mu.Unlock()
	})
	return nil
}

// Call delegates to the configured CallHandler.
func (e *Endpoint) Call(ctx context.Context, method string, args []ports.CallArg) (*ports.CallResult, error) {
	e.mu.Lock()
	e.ops = append(e.ops, "call:"+method)
	h, err := e.calls, e.failure["call"]
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: call", domain.ErrUnsupported)
	}
	return h(ctx, method, args)
}

func (e *Endpoint) GetProperty(ctx context.Context, name string) (model.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, "getprop:"+name)
	v, ok := e.props[name]
	if !ok {
		return model.Nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return v, nil
}

func (e *Endpoint) SetProperty(ctx context.Context, name string, value model.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, "setprop:"+name)
	e.props[name] = value
	return nil
}

// Outputs returns every payload sent so far.
func (e *Endpoint) Outputs() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.outputs))
	for i, o := range e.outputs {
		out[i] = slices.Clone(o)
	}
	return out
}

// Ops returns the operations performed so far, in order.
func (e *Endpoint) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.ops)
}

// OpenStreams returns how many input streams have not been closed.
func (e *Endpoint) OpenStreams() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streams
}

// Property returns a property without recording an operation.
func (e *Endpoint) Property(name string) (model.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[name]
	return v, ok
}

// Reset clears recorded outputs, operations and queued inputs, and reopens
// the endpoint.
func (e *Endpoint) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending, e.outputs, e.ops = nil, nil, nil
	e.closed = false
}
