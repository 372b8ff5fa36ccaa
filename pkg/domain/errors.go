package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/model"
)

var (
	// ErrStateNotFound is returned when a state reference names no state.
	ErrStateNotFound = errors.New("state not found")
	// ErrDuplicateName is returned when states or actions of a state share a name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidAction is returned for actions missing what their type requires.
	ErrInvalidAction = errors.New("invalid action")
	// ErrSlurpSource is returned when a slurp source does not match exactly one element.
	ErrSlurpSource = errors.New("slurp source must match exactly one element")
	// ErrTimeout is returned when an endpoint produced no data in time.
	ErrTimeout = errors.New("timeout")
	// ErrUnsupported is returned by endpoints for operations they do not implement.
	ErrUnsupported = errors.New("operation not supported by endpoint")
)

// Category classifies failures by how the run reacts to them.
type Category string

const (
	CategoryNone       Category = ""
	CategoryConfig     Category = "config"
	CategoryCrack      Category = "crack"
	CategoryTimeout    Category = "timeout"
	CategoryConversion Category = "conversion"
	CategoryEndpoint   Category = "endpoint"
	CategoryCanceled   Category = "canceled"
)

// Fatal reports whether failures of this category stop the run.
func (c Category) Fatal() bool {
	return c == CategoryConfig || c == CategoryEndpoint || c == CategoryCanceled
}

// ConfigError is a structural problem in a StateModel, such as a ChangeState
// to an unknown state or an ambiguous slurp source.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error at '%s': %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RecoverableError is an element-level failure. It ends the current
// iteration but not the run.
type RecoverableError struct {
	State    string
	Action   string
	Category Category
	Path     string
	Offset   int
	Err      error
}

func (e *RecoverableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s failure in %s.%s at '%s' (offset %d): %v", e.Category, e.State, e.Action, e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s failure in %s.%s: %v", e.Category, e.State, e.Action, e.Err)
}

func (e *RecoverableError) Unwrap() error { return e.Err }

// EndpointError is a hard failure of the endpoint. It is fatal for the run.
type EndpointError struct {
	Action string
	Op     string
	Err    error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint %s failed in action '%s': %v", e.Op, e.Action, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// Classify maps an error to its category.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var (
		recoverable *RecoverableError
		endpoint    *EndpointError
		config      *ConfigError
		modelConfig *model.ConfigError
		crack       *cracker.Error
		conversion  *model.ConversionError
	)
	switch {
	case errors.As(err, &recoverable):
		return recoverable.Category
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &config), errors.As(err, &modelConfig):
		return CategoryConfig
	case errors.As(err, &endpoint):
		return CategoryEndpoint
	case errors.As(err, &crack):
		return CategoryCrack
	case errors.As(err, &conversion):
		return CategoryConversion
	default:
		return CategoryEndpoint
	}
}

// Location extracts the element path and byte offset carried by err, if any.
func Location(err error) (string, int) {
	var (
		recoverable *RecoverableError
		crack       *cracker.Error
		conversion  *model.ConversionError
		modelConfig *model.ConfigError
		config      *ConfigError
	)
	switch {
	case errors.As(err, &recoverable):
		return recoverable.Path, recoverable.Offset
	case errors.As(err, &crack):
		return crack.Path, crack.Offset
	case errors.As(err, &conversion):
		return conversion.Path, -1
	case errors.As(err, &modelConfig):
		return modelConfig.Path, -1
	case errors.As(err, &config):
		return config.Path, -1
	}
	return "", -1
}
