package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

// Overlay contains the live state of a machine to highlight on the graph.
type Overlay struct {
	// Active is the state stack, outermost first.
	Active  []domain.StateID
	Current domain.StateID
}

// OverlayFromRecord builds an overlay from a machine record.
func OverlayFromRecord(rec domain.MachineRecord) *Overlay {
	o := &Overlay{}
	for _, f := range rec.States {
		o.Active = append(o.Active, f.State)
	}
	if n := len(o.Active); n > 0 {
		o.Current = o.Active[n-1]
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a machine definition.
// Shapes encode the state kind:
// - Start: ((Circle))
// - Hot: {{Hexagon}}
// - Cold: ([Stadium])
// - Default: [Rectangle]
// Goto transitions are solid arrows, push transitions dotted.
// It also applies overlay styles (Active/Current) if provided.
func GenerateMermaid(def *runtime.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range def.StateIDs() {
		s, _ := def.State(id)
		safeID := sanitizeMermaidID(string(id))

		opener, closer := "[", "]"
		switch {
		case id == def.Start:
			opener, closer = "((", "))"
		case s.Temperature == domain.Hot:
			opener, closer = "{{", "}}"
		case s.Temperature == domain.Cold:
			opener, closer = "([", "])"
		}

		label := string(id)
		if deferred := eventNames(s.Deferred); len(deferred) > 0 {
			label += " <br/> defer: " + strings.Join(deferred, ", ")
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		events := make([]*domain.Event, 0, len(s.Transitions))
		for e := range s.Transitions {
			events = append(events, e)
		}
		sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })

		for _, e := range events {
			t := s.Transitions[e]
			safeTo := sanitizeMermaidID(string(t.Target))
			name := strings.ReplaceAll(e.Name, "\"", "'")
			if t.IsPush() {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", safeID, name, safeTo)
			} else {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, name, safeTo)
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef active fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Active {
			safeID := sanitizeMermaidID(string(id))
			if id == overlay.Current || seen[safeID] || safeID == "" {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s active;\n", safeID)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
		}
	}

	return sb.String()
}

func eventNames(events set.Set[*domain.Event]) []string {
	var names []string
	for e := range events.Items() {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
