package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/crackle/pkg/domain"
)

// LogHooks logs every lifecycle event. Iterations and faults are logged at
// info and warn; state and action events at debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnIterationStart: func(ctx context.Context, e *domain.IterationEvent) {
			logger.InfoContext(ctx, "iteration_start", "run_id", e.RunID, "iteration", e.Iteration, "control", e.Control)
		},
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) {
			logger.InfoContext(ctx, "iteration_end", "run_id", e.RunID, "iteration", e.Iteration, "outcome", e.Outcome)
		},
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "state", e.State, "from", e.From)
		},
		OnActionEnd: func(ctx context.Context, e *domain.ActionEvent) {
			logger.DebugContext(ctx, "action_end",
				"state", e.State,
				"action", e.Action,
				"type", e.Kind,
				"sent", e.Sent,
				"received", e.Received,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
		OnFault: func(ctx context.Context, f *domain.Fault) {
			logger.WarnContext(ctx, "fault",
				"iteration", f.Iteration,
				"category", f.Category,
				"path", f.Path,
				"offset", f.Offset,
			)
		},
	}
}
