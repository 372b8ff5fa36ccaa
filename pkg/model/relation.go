package model

import (
	"errors"
	"fmt"
)

// RelationKind names what a governing field measures.
type RelationKind uint8

const (
	RelationSize RelationKind = iota + 1
	RelationCount
	RelationOffset
)

func (k RelationKind) String() string {
	switch k {
	case RelationSize:
		return "size"
	case RelationCount:
		return "count"
	case RelationOffset:
		return "offset"
	default:
		return "none"
	}
}

// Relation is a resolved link from a governing field to a target subtree.
type Relation struct {
	Kind   RelationKind
	Target ID
	Anchor ID
	InBits bool
	Get    Expression
	Set    Expression
}

// Expression adjusts a relation value in one direction.
type Expression interface {
	Apply(v int64) (int64, error)
}

// ExprFunc adapts a function to Expression.
type ExprFunc func(v int64) (int64, error)

// Apply calls f.
func (f ExprFunc) Apply(v int64) (int64, error) { return f(v) }

// Add adds a constant.
type Add int64

// Apply returns v + a.
func (a Add) Apply(v int64) (int64, error) { return v + int64(a), nil }

// Mul multiplies by a constant.
type Mul int64

// Apply returns v * m.
func (m Mul) Apply(v int64) (int64, error) { return v * int64(m), nil }

// Div divides by a constant, failing when the division is not exact.
type Div int64

var errInexact = errors.New("inexact division")

// Apply returns v / d.
func (d Div) Apply(v int64) (int64, error) {
	if d == 0 {
		return 0, errors.New("division by zero")
	}
	if v%int64(d) != 0 {
		return 0, fmt.Errorf("%w: %d / %d", errInexact, v, int64(d))
	}
	return v / int64(d), nil
}

// FieldToMeasure converts a governing field's raw value into the measurement
// it declares, applying the Get expression.
func (r *Relation) FieldToMeasure(v int64) (int64, error) {
	if r.Get == nil {
		return v, nil
	}
	return r.Get.Apply(v)
}

// MeasureToField converts a measurement into the governing field's value,
// applying the Set expression.
func (r *Relation) MeasureToField(m int64) (int64, error) {
	if r.Set == nil {
		return m, nil
	}
	return r.Set.Apply(m)
}
