package bot

import (
	"fmt"
	"strings"
	"time"

	"streamwatch/internal/scheduler"
)

// FormatStatus renders the state of every source for display.
func FormatStatus(statuses []scheduler.SourceStatus, now time.Time) string {
	if len(statuses) == 0 {
		return "No sources are enabled."
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "\n%s (%s) [%s]\n", st.Name, st.Kind, st.State)
		fmt.Fprintf(&b, "   every %s, tracking %d\n", st.Interval, st.Tracked)
		if st.LastRun.IsZero() {
			b.WriteString("   not run yet\n")
			continue
		}
		fmt.Fprintf(&b, "   last run %s ago\n", now.Sub(st.LastRun).Truncate(time.Second))
		fmt.Fprintf(&b, "   %d cycles, %d sent, %d failed\n", st.Cycles, st.Sent, st.Failed)
		if st.LastError != "" {
			fmt.Fprintf(&b, "   last error: %s\n", st.LastError)
		}
	}
	return b.String()
}

// FormatSourceNames lists the names accepted by /check.
func FormatSourceNames(statuses []scheduler.SourceStatus) string {
	if len(statuses) == 0 {
		return "No sources are enabled."
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
	}
	return "Sources: " + strings.Join(names, ", ")
}
