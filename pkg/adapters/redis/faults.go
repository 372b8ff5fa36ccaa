package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/crackle/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// FaultLog implements ports.FaultReporter and ports.FaultLister with one
// Redis list per run.
type FaultLog struct {
	client backend.UniversalClient
	opts   options
}

// NewFaultLog creates a fault log backed by client.
func NewFaultLog(client backend.UniversalClient, opts ...Option) *FaultLog {
	return &FaultLog{client: client, opts: newOptions(opts)}
}

func (l *FaultLog) key(runID string) string {
	return l.opts.prefix + "faults:" + runID
}

// Report appends the fault to its run's list.
func (l *FaultLog) Report(ctx context.Context, fault domain.Fault) error {
	data, err := json.Marshal(fault)
	if err != nil {
		return fmt.Errorf("failed to marshal fault: %w", err)
	}
	key := l.key(fault.RunID)
	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if l.opts.ttl > 0 {
		pipe.Expire(ctx, key, l.opts.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to report fault: %w", err)
	}
	return nil
}

// List returns the faults of runID in report order.
func (l *FaultLog) List(ctx context.Context, runID string) ([]domain.Fault, error) {
	items, err := l.client.LRange(ctx, l.key(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list faults of %s: %w", runID, err)
	}
	out := make([]domain.Fault, 0, len(items))
	for _, item := range items {
		var f domain.Fault
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fault: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}
