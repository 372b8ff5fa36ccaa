package model

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when relations or fixups depend on themselves.
	ErrCycle = errors.New("dependency cycle")
	// ErrUnresolved is returned when a relation, fixup or lookup path does not name an element.
	ErrUnresolved = errors.New("unresolved reference")
	// ErrDuplicateName is returned when two siblings share a name.
	ErrDuplicateName = errors.New("duplicate sibling name")
	// ErrInvalidDef is returned for malformed element definitions.
	ErrInvalidDef = errors.New("invalid definition")
	// ErrOutOfRange is returned when a value does not fit the declared width.
	ErrOutOfRange = errors.New("value out of range")
)

// ConfigError is a structural problem in a model. It is fatal for the run.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("model configuration error at '%s': %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConversionError means a computed or authored value cannot be represented
// in its element's declared width or format.
type ConversionError struct {
	Path  string
	Value Value
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot encode %s into '%s': %v", e.Value, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
