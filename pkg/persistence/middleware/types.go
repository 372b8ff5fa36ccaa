// Package middleware wraps slurp caches with extra behavior.
package middleware

import "github.com/aretw0/crackle/pkg/ports"

// Middleware allows wrapping a SlurpCache to add behavior.
type Middleware func(ports.SlurpCache) ports.SlurpCache
