package observability

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/aretw0/crackle/pkg/domain"
)

// RunSnapshot is the progress of the run a Tracker observes.
type RunSnapshot struct {
	RunID      string                  `json:"run_id"`
	Iteration  int                     `json:"iteration"`
	Iterations int                     `json:"iterations"`
	State      string                  `json:"state,omitempty"`
	Action     string                  `json:"action,omitempty"`
	Faults     map[domain.Category]int `json:"faults"`
	LastFault  *domain.Fault           `json:"last_fault,omitempty"`
	Updated    time.Time               `json:"updated"`
}

// Tracker aggregates lifecycle events into a RunSnapshot and fans it out
// to watchers at the end of every iteration.
type Tracker struct {
	mu       sync.RWMutex
	snap     RunSnapshot
	watchers []chan RunSnapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: RunSnapshot{Faults: map[domain.Category]int{}}}
}

// Hooks returns lifecycle hooks feeding the tracker.
func (t *Tracker) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnIterationStart: func(ctx context.Context, e *domain.IterationEvent) {
			t.update(func(s *RunSnapshot) {
				if s.RunID != e.RunID {
					*s = RunSnapshot{RunID: e.RunID, Faults: map[domain.Category]int{}}
				}
				s.Iteration = e.Iteration
			})
		},
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			t.update(func(s *RunSnapshot) {
				s.State, s.Action = e.State, e.Action
			})
		},
		OnFault: func(ctx context.Context, f *domain.Fault) {
			fault := *f
			t.update(func(s *RunSnapshot) {
				s.Faults[f.Category]++
				s.LastFault = &fault
			})
		},
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) {
			t.update(func(s *RunSnapshot) { s.Iterations++ })
			t.publish()
		},
	}
}

func (t *Tracker) update(fn func(*RunSnapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.snap)
	t.snap.Updated = time.Now().UTC()
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() RunSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	s.Faults = maps.Clone(t.snap.Faults)
	return s
}

// Watch returns a channel receiving a snapshot after every iteration until
// ctx is done. Slow watchers miss snapshots rather than stall the run.
func (t *Tracker) Watch(ctx context.Context) <-chan RunSnapshot {
	ch := make(chan RunSnapshot, 1)
	t.mu.Lock()
	t.watchers = append(t.watchers, ch)
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, w := range t.watchers {
			if w == ch {
				t.watchers = append(t.watchers[:i], t.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (t *Tracker) publish() {
	snap := t.Snapshot()
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, w := range t.watchers {
		select {
		case w <- snap:
		default:
		}
	}
}
