package ports

import (
	"context"
	"io"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
)

// CallArg is one serialized call parameter.
type CallArg struct {
	Name      string
	Direction domain.Direction
	Data      []byte
}

// CallResult holds what a call returned. Out is keyed by parameter name and
// carries data for Out and InOut parameters only.
type CallResult struct {
	Out      map[string][]byte
	Value    []byte
	HasValue bool
}

// Endpoint is the system under test as seen by the engine.
//
// Implementations return domain.ErrUnsupported for operations they do not
// provide; the engine reports it as a configuration error of the action that
// asked for it. Errors wrapping context.DeadlineExceeded or domain.ErrTimeout
// are recoverable timeouts. Any other error is a hard endpoint failure.
type Endpoint interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Connect(ctx context.Context) error
	Accept(ctx context.Context) error

	// Output sends the serialized model.
	Output(ctx context.Context, data []byte) error
	// Input returns a stream of incoming bytes. The caller reads only what
	// the model requires and always closes the stream.
	Input(ctx context.Context) (io.ReadCloser, error)

	Call(ctx context.Context, method string, args []CallArg) (*CallResult, error)
	GetProperty(ctx context.Context, name string) (model.Value, error)
	SetProperty(ctx context.Context, name string, value model.Value) error
}

// Unreader is implemented by Input streams that keep data between calls.
// After a successful crack the engine hands back the bytes it received but
// did not consume, so the next Input sees them first.
type Unreader interface {
	Unread(p []byte)
}
