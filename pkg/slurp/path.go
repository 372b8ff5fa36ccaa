package slurp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSelector is returned for malformed selector expressions.
var ErrInvalidSelector = errors.New("invalid selector")

const (
	wildcard   = "*"
	descendant = ""
)

// Selector is a compiled path expression.
type Selector struct {
	expr  string
	steps []string
}

// Compile parses a selector expression.
func Compile(expr string) (Selector, error) {
	if strings.TrimSpace(expr) == "" {
		return Selector{}, fmt.Errorf("%w: empty expression", ErrInvalidSelector)
	}
	body, absolute := strings.CutPrefix(expr, "/")
	steps := strings.Split(body, "/")
	if !absolute {
		steps = append([]string{descendant}, steps...)
	}
	for i, s := range steps {
		if s != descendant {
			continue
		}
		if i == len(steps)-1 || steps[i+1] == descendant {
			return Selector{}, fmt.Errorf("%w: '%s' has an empty step", ErrInvalidSelector, expr)
		}
	}
	return Selector{expr: expr, steps: steps}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) Selector {
	s, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Selector) String() string { return s.expr }

// Match reports whether the name sequence of an absolute path satisfies s.
func (s Selector) Match(names []string) bool {
	return match(s.steps, names)
}

func match(steps, names []string) bool {
	if len(steps) == 0 {
		return len(names) == 0
	}
	if steps[0] == descendant {
		for i := 0; i <= len(names); i++ {
			if match(steps[1:], names[i:]) {
				return true
			}
		}
		return false
	}
	if len(names) == 0 || (steps[0] != wildcard && steps[0] != names[0]) {
		return false
	}
	return match(steps[1:], names[1:])
}

// SplitPath returns the names of an absolute path.
func SplitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// JoinPath builds an absolute path from names.
func JoinPath(names ...string) string {
	return "/" + strings.Join(names, "/")
}
