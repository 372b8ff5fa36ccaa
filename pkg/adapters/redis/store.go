package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/crackle/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// SlurpCache implements ports.SlurpCache on Redis, so that several
// processes fuzzing one target replay the same recordings.
type SlurpCache struct {
	client backend.UniversalClient
	opts   options
}

// NewSlurpCache creates a cache backed by client.
func NewSlurpCache(client backend.UniversalClient, opts ...Option) *SlurpCache {
	return &SlurpCache{client: client, opts: newOptions(opts)}
}

func (s *SlurpCache) key(k string) string {
	return s.opts.prefix + "slurp:" + k
}

// Store saves the recording as JSON.
func (s *SlurpCache) Store(ctx context.Context, key string, rec domain.SlurpRecording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store recording %s: %w", key, err)
	}
	return nil
}

// Load returns the recording stored under key.
func (s *SlurpCache) Load(ctx context.Context, key string) (domain.SlurpRecording, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.SlurpRecording{}, false, nil
	}
	if err != nil {
		return domain.SlurpRecording{}, false, fmt.Errorf("failed to load recording %s: %w", key, err)
	}
	var rec domain.SlurpRecording
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.SlurpRecording{}, false, fmt.Errorf("failed to unmarshal recording %s: %w", key, err)
	}
	return rec, true, nil
}
