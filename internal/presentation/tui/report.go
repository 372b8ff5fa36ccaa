package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/crackle"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/muesli/termenv"
)

// maxFaultRows bounds the fault table of a report.
const maxFaultRows = 20

// RunReport renders a run summary as markdown.
func RunReport(sum *crackle.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", sum.Target)
	fmt.Fprintf(&sb, "- **Run ID:** `%s`\n", sum.RunID)
	fmt.Fprintf(&sb, "- **Iterations:** %d\n", sum.Iterations)
	fmt.Fprintf(&sb, "- **Duration:** %s\n", sum.Finished.Sub(sum.Started).Round(time.Millisecond))
	fmt.Fprintf(&sb, "- **Faults:** %d\n\n", len(sum.Faults))

	if counts := sum.Counts(); len(counts) > 0 {
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		sb.WriteString("## Faults by category\n\n| Category | Count |\n|---|---|\n")
		for _, c := range cats {
			fmt.Fprintf(&sb, "| %s | %d |\n", c, counts[domain.Category(c)])
		}
		sb.WriteString("\n")
	}

	if len(sum.Faults) > 0 {
		sb.WriteString("## Faults\n\n| Iteration | Category | Location | Message |\n|---|---|---|---|\n")
		for i, f := range sum.Faults {
			if i == maxFaultRows {
				fmt.Fprintf(&sb, "\n_%d more not shown._\n", len(sum.Faults)-maxFaultRows)
				break
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", f.Iteration, f.Category, location(f), cell(f.Message))
		}
		sb.WriteString("\n")
	}

	if len(sum.Last) > 0 {
		sb.WriteString("## Last iteration\n\n| State | Action | Type | Outcome | Bytes |\n|---|---|---|---|---|\n")
		for _, r := range sum.Last {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %d/%d |\n",
				r.State, r.Action, r.Type, r.Outcome, len(r.Sent), len(r.Received))
		}
	}
	return sb.String()
}

func location(f domain.Fault) string {
	loc := f.State + "." + f.Action
	if f.Path != "" {
		loc += " `" + f.Path + "`"
	}
	if f.Offset >= 0 && f.Category == domain.CategoryCrack {
		loc += fmt.Sprintf(" @%d", f.Offset)
	}
	return loc
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// FaultSummary returns a one-line colored verdict of a run.
func FaultSummary(sum *crackle.Summary) string {
	p := termenv.ColorProfile()
	if len(sum.Faults) == 0 {
		return termenv.String(fmt.Sprintf("✔ %d iterations, no faults", sum.Iterations)).Foreground(p.Color("#22c55e")).String()
	}
	return termenv.String(fmt.Sprintf("✘ %d iterations, %d faults", sum.Iterations, len(sum.Faults))).Foreground(p.Color("#ef4444")).Bold().String()
}
