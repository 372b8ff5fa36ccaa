package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/ports"
)

// FaultReporterContractTest is a reusable test suite that verifies if an
// adapter complies with ports.FaultReporter and ports.FaultLister.
func FaultReporterContractTest(t *testing.T, reporter interface {
	ports.FaultReporter
	ports.FaultLister
}) {
	t.Helper()
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405.000")

	faults := []domain.Fault{
		{RunID: runID, Iteration: 3, State: "session", Action: "recv", Category: domain.CategoryCrack, Path: "msg.len", Offset: 2, Message: "short", Mutations: []string{"send.msg.len"}},
		{RunID: runID, Iteration: 7, State: "session", Action: "recv", Category: domain.CategoryTimeout, Offset: -1, Message: "no data"},
	}

	// 1. Report
	t.Run("Report", func(t *testing.T) {
		for _, f := range faults {
			if err := reporter.Report(ctx, f); err != nil {
				t.Fatalf("unexpected error reporting fault: %v", err)
			}
		}
	})

	// 2. List in report order
	t.Run("List", func(t *testing.T) {
		got, err := reporter.List(ctx, runID)
		if err != nil {
			t.Fatalf("unexpected error listing faults: %v", err)
		}
		if len(got) != len(faults) {
			t.Fatalf("expected %d faults, got %d", len(faults), len(got))
		}
		for i := range faults {
			if got[i].Iteration != faults[i].Iteration || got[i].Category != faults[i].Category || got[i].Path != faults[i].Path {
				t.Errorf("fault %d mismatch. got %+v, want %+v", i, got[i], faults[i])
			}
		}
		if len(got[0].Mutations) != 1 || got[0].Mutations[0] != "send.msg.len" {
			t.Errorf("mutations not preserved: %v", got[0].Mutations)
		}
	})

	// 3. Other runs are isolated
	t.Run("List_OtherRun", func(t *testing.T) {
		got, err := reporter.List(ctx, runID+"-other")
		if err != nil {
			t.Fatalf("unexpected error listing faults: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no faults for unknown run, got %d", len(got))
		}
	})
}
