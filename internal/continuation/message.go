package continuation

import (
	"fmt"
	"strings"

	"github.com/kingrea/beads-continuation/internal/tracker"
)

const (
	// Marker opens every injected continuation so the agent (and tests) can
	// recognise it.
	Marker = "[SYSTEM REMINDER - BEADS CONTINUATION]"

	maxReadyShown = 3
)

const preamble = Marker + `

You stopped while beads are still in progress. Keep working without asking for permission.
Finish the current bead before you start anything new. When it is done, close it, then check what is ready next.`

// BuildMessage renders the continuation prompt. inProgress must be non-empty
// and keeps tracker order; ready is the result of the ready query for epicID.
func BuildMessage(inProgress []tracker.WorkItem, epicID string, ready []tracker.WorkItem) string {
	if len(inProgress) == 0 {
		return ""
	}
	current := inProgress[0]
	var b strings.Builder
	b.WriteString(preamble)

	b.WriteString("\n\n## Current Work\n")
	fmt.Fprintf(&b, "- %s: %s\n", current.ID, current.Title)
	fmt.Fprintf(&b, "  Run `bd show %s` for details.\n", current.ID)

	if others := inProgress[1:]; len(others) > 0 {
		fmt.Fprintf(&b, "\n## Also In Progress (%d %s)\n", len(others), pluralize("bead", len(others)))
		writeItems(&b, others)
	}

	if len(ready) > 0 {
		b.WriteString("\n## Ready After This\n")
		shown := ready
		if len(shown) > maxReadyShown {
			shown = shown[:maxReadyShown]
		}
		writeItems(&b, shown)
		if extra := len(ready) - len(shown); extra > 0 {
			fmt.Fprintf(&b, "- ... and %d more\n", extra)
		}
	}

	b.WriteString("\n## Required Actions\n")
	fmt.Fprintf(&b, "1. Complete %s.\n", current.ID)
	fmt.Fprintf(&b, "2. Close it with `bd close %s`.\n", current.ID)
	fmt.Fprintf(&b, "3. Run `%s` and claim the next bead.\n", nextCommand(epicID))
	return b.String()
}

func writeItems(b *strings.Builder, items []tracker.WorkItem) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %s\n", item.ID, item.Title)
	}
}

func nextCommand(epicID string) string {
	if epicID = strings.TrimSpace(epicID); epicID != "" {
		return fmt.Sprintf("bd ready --parent %s --json", epicID)
	}
	return "bd ready --json"
}

func pluralize(word string, count int) string {
	if count > 1 {
		return word + "s"
	}
	return word
}

func countdownMessage(remaining, incomplete int) string {
	return fmt.Sprintf("Resuming in %ds... (%d %s in progress)", remaining, incomplete, pluralize("bead", incomplete))
}
