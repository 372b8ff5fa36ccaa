package ports

import (
	"context"

	"github.com/aretw0/crackle/pkg/domain"
)

// FaultReporter receives every fault a run produces.
type FaultReporter interface {
	Report(ctx context.Context, fault domain.Fault) error
}

// FaultLister is implemented by reporters that can return what they stored,
// newest last.
type FaultLister interface {
	List(ctx context.Context, runID string) ([]domain.Fault, error)
}

// SlurpCache keeps slurp recordings between iterations and, for shared
// backends, between processes fuzzing the same target.
type SlurpCache interface {
	// Load returns the recording stored under key. The boolean is false when
	// nothing was recorded.
	Load(ctx context.Context, key string) (domain.SlurpRecording, bool, error)
	Store(ctx context.Context, key string, rec domain.SlurpRecording) error
}
