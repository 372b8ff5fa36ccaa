package crackle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/google/uuid"
)

// Summary describes a finished run.
type Summary struct {
	RunID      string                `json:"run_id"`
	Target     string                `json:"target"`
	Iterations int                   `json:"iterations"`
	Faults     []domain.Fault        `json:"faults,omitempty"`
	Last       []domain.ActionRecord `json:"last,omitempty"`
	Started    time.Time             `json:"started"`
	Finished   time.Time             `json:"finished"`
}

// Counts returns the number of faults per category.
func (s *Summary) Counts() map[domain.Category]int {
	out := make(map[domain.Category]int)
	for _, f := range s.Faults {
		out[f.Category]++
	}
	return out
}

// Run executes up to iterations passes over the state model. Recoverable
// failures become faults and the run continues; a fatal failure or a
// canceled context stops it and is returned along with the summary.
func (e *Engine) Run(ctx context.Context, iterations int) (*Summary, error) {
	sum := &Summary{
		RunID:   uuid.NewString(),
		Target:  e.Name,
		Started: time.Now().UTC(),
	}
	defer func() { sum.Finished = time.Now().UTC() }()

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, "crackle:run:"+e.Name, e.lockTTL)
		if err != nil {
			return sum, fmt.Errorf("failed to lock target %s: %w", e.Name, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("failed to release run lock", "target", e.Name, "err", err)
			}
		}()
	}

	logger := e.logger.With("run_id", sum.RunID)
	logger.Info("run started", "target", e.Name, "iterations", iterations)

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		report, mutations, err := e.Iterate(ctx, sum.RunID, i)
		sum.Iterations++
		if report != nil {
			sum.Last = report.Records
		}
		if err == nil {
			continue
		}

		cat := domain.Classify(err)
		if cat == domain.CategoryCanceled {
			return sum, err
		}
		fault := domain.NewFault(sum.RunID, i, err)
		fault.Mutations = mutations
		sum.Faults = append(sum.Faults, fault)
		e.report(ctx, &fault)

		if cat.Fatal() {
			logger.Error("run aborted", "iteration", i, "err", err)
			return sum, err
		}
	}
	logger.Info("run finished", "iterations", sum.Iterations, "faults", len(sum.Faults))
	return sum, nil
}

// Iterate runs iteration n on private copies of the models. The mutator is
// skipped on the control iteration, which also records slurps. It returns
// the action trace and the mutations applied, one per changed element.
func (e *Engine) Iterate(ctx context.Context, runID string, n int) (*runtime.Report, []string, error) {
	control := n == e.control
	models := e.models.Clone()

	var mutations []string
	if !control && e.mutator != nil {
		pristine := models.Clone()
		if err := e.mutator.Mutate(ctx, n, models); err != nil {
			return nil, nil, fmt.Errorf("mutator failed on iteration %d: %w", n, err)
		}
		mutations = describe(pristine, models)
	}

	if e.hooks.OnIterationStart != nil {
		e.hooks.OnIterationStart(ctx, &domain.IterationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventIterationStart, RunID: runID, Iteration: n},
			Control:   control,
		})
	}

	report, err := e.runtime.Run(ctx, e.sm, runtime.Iteration{
		RunID:     runID,
		Number:    n,
		Recording: control,
		Models:    models,
	})

	if e.hooks.OnIterationEnd != nil {
		e.hooks.OnIterationEnd(ctx, &domain.IterationEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventIterationEnd, RunID: runID, Iteration: n},
			Control:   control,
			Err:       err,
			Outcome:   domain.Classify(err),
		})
	}
	return report, mutations, err
}

func (e *Engine) report(ctx context.Context, f *domain.Fault) {
	e.logger.Warn("fault",
		"iteration", f.Iteration,
		"category", f.Category,
		"state", f.State,
		"action", f.Action,
		"path", f.Path,
		"offset", f.Offset,
		"message", f.Message)
	if e.hooks.OnFault != nil {
		e.hooks.OnFault(ctx, f)
	}
	if e.reporter == nil {
		return
	}
	if err := e.reporter.Report(context.WithoutCancel(ctx), *f); err != nil {
		e.logger.Error("failed to report fault", "iteration", f.Iteration, "err", err)
	}
}

// describe renders the differences between the pristine and mutated models
// as "<state>.<action>.<element path> <change>".
func describe(pristine, mutated runtime.Models) []string {
	keys := mutated.Keys()
	sort.Strings(keys)
	var out []string
	for _, key := range keys {
		// Model keys end with the root name, which starts every element path.
		prefix := key[:len(key)-len(mutated[key].Name())]
		for _, c := range model.Diff(pristine[key], mutated[key]) {
			out = append(out, prefix+c.String())
		}
	}
	return out
}
