package redis

import "time"

// DefaultPrefix namespaces every key written by the adapters.
const DefaultPrefix = "crackle:"

type options struct {
	prefix string
	ttl    time.Duration
}

// Option configures the Redis adapters.
type Option func(*options)

// WithPrefix sets the key prefix (default "crackle:").
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTTL expires stored recordings and fault lists after ttl. Zero keeps
// them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

func newOptions(opts []Option) options {
	o := options{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
