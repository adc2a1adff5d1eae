package audit

import (
	"fmt"
	"strings"
	"time"
)

// Scoreboard is the renderable status snapshot printed by `nwwatchdogd
// status`: current boot medium plus the three persistent reset counts.
// There is no HTML consumer for a headless field daemon, so only the
// plain-text path survives.
type Scoreboard struct {
	CurrentMedia  string
	NetworkResets int64
	SoftResets    int64
	HardResets    int64
	Ladder        []string // human-readable "<threshold>s  <action>" rows
}

// FormatText renders the scoreboard the way `nwwatchdogd status` prints
// it to stdout.
func FormatText(sb Scoreboard) string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("  NETWORK WATCHDOG SCOREBOARD\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	fmt.Fprintf(&b, "Current Media:        %s\n", sb.CurrentMedia)
	fmt.Fprintf(&b, "Network Reset Count:  %d\n", sb.NetworkResets)
	fmt.Fprintf(&b, "Soft Reset Count:     %d\n", sb.SoftResets)
	fmt.Fprintf(&b, "Hard Reset Count:     %d\n", sb.HardResets)
	b.WriteString("\n")

	if len(sb.Ladder) > 0 {
		b.WriteString("RECOVERY LADDER\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for i, row := range sb.Ladder {
			fmt.Fprintf(&b, "%d. %s\n", i+1, row)
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", 60) + "\n")

	return b.String()
}
