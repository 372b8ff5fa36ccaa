package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/crackle/pkg/domain"
)

// FaultLog implements ports.FaultReporter and ports.FaultLister in memory.
type FaultLog struct {
	faults []domain.Fault
	mu     sync.RWMutex
}

// NewFaultLog creates an empty fault log.
func NewFaultLog() *FaultLog {
	return &FaultLog{}
}

// Report appends the fault.
func (l *FaultLog) Report(ctx context.Context, fault domain.Fault) error {
	fault.Mutations = slices.Clone(fault.Mutations)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = append(l.faults, fault)
	return nil
}

// List returns the faults of one run in report order.
func (l *FaultLog) List(ctx context.Context, runID string) ([]domain.Fault, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Fault
	for _, f := range l.faults {
		if f.RunID == runID {
			out = append(out, f)
		}
	}
	return out, nil
}

// All returns every fault reported so far.
func (l *FaultLog) All() []domain.Fault {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.faults)
}
