package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/crackle/pkg/domain"
)

// SlurpCache implements ports.SlurpCache in memory.
// Safe for concurrent use.
type SlurpCache struct {
	data map[string]domain.SlurpRecording
	mu   sync.RWMutex
}

// NewSlurpCache creates a new in-memory slurp cache.
func NewSlurpCache() *SlurpCache {
	return &SlurpCache{
		data: make(map[string]domain.SlurpRecording),
	}
}

// Store keeps a copy of the recording.
func (s *SlurpCache) Store(ctx context.Context, key string, rec domain.SlurpRecording) error {
	rec.Sinks = slices.Clone(rec.Sinks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = rec
	return nil
}

// Load returns a copy of the recording so callers can't mutate the cache.
func (s *SlurpCache) Load(ctx context.Context, key string) (domain.SlurpRecording, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[key]
	if !ok {
		return domain.SlurpRecording{}, false, nil
	}
	rec.Sinks = slices.Clone(rec.Sinks)
	return rec, true, nil
}

// Keys returns the keys of every stored recording.
func (s *SlurpCache) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
