package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/crackle/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
	FaultState    string
}

// GenerateMermaid produces a Mermaid flowchart of a state model.
// It applies semantic styling:
// - Initial state: ((Circle))
// - States that call the target: [[Subroutine]]
// - States that only receive: [/Parallelogram/]
// - Default: [Rectangle]
// Change-state actions become solid edges; slurps that read another state's
// models become dotted edges from that state.
func GenerateMermaid(sm *domain.StateModel, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, st := range sm.States {
		safeID := sanitizeMermaidID(st.Name)

		opener, closer := "[", "]"
		switch {
		case st.Name == sm.Initial:
			opener, closer = "((", "))"
		case has(st, domain.ActionCall):
			opener, closer = "[[", "]]"
		case has(st, domain.ActionInput) && !has(st, domain.ActionOutput):
			opener, closer = "[/", "/]"
		}

		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, st.Name, summarize(st), closer))

		for _, a := range st.Actions {
			switch a.Type {
			case domain.ActionChangeState:
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(a.Target)))
			case domain.ActionSlurp:
				seen := make(map[string]bool)
				for _, s := range a.Slurps {
					from := sourceState(s.Source)
					if from == "" || from == st.Name || seen[from] {
						continue
					}
					seen[from] = true
					label := strings.ReplaceAll(a.Name, "\"", "'")
					sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", sanitizeMermaidID(from), label, safeID))
				}
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef fault fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, name := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(name)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
		if overlay.FaultState != "" {
			sb.WriteString(fmt.Sprintf("    class %s fault;\n", sanitizeMermaidID(overlay.FaultState)))
		}
	}

	return sb.String()
}

// OverlayFromRecords marks every state in records as visited and the state
// of a failed record as faulted.
func OverlayFromRecords(records []domain.ActionRecord) *GraphOverlay {
	o := &GraphOverlay{}
	for _, r := range records {
		o.VisitedStates = append(o.VisitedStates, r.State)
		o.CurrentState = r.State
		if r.Error != "" {
			o.FaultState = r.State
		}
	}
	if o.FaultState == o.CurrentState {
		o.CurrentState = ""
	}
	return o
}

func has(st domain.State, t domain.ActionType) bool {
	for _, a := range st.Actions {
		if a.Type == t {
			return true
		}
	}
	return false
}

// summarize lists the action types of st, collapsing repeats.
func summarize(st domain.State) string {
	var parts []string
	for _, a := range st.Actions {
		if a.Type == domain.ActionChangeState {
			continue
		}
		t := string(a.Type)
		if len(parts) > 0 && parts[len(parts)-1] == t {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " · ")
}

func sourceState(selector string) string {
	s := strings.TrimLeft(selector, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return ""
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
