package ui

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/whotalks/internal/cli/helpers"
	"github.com/coral-mesh/whotalks/internal/investigate"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

func direction(e investigate.Entry) string {
	switch {
	case e.Listening():
		return "listening"
	case e.Outgoing:
		return "outgoing"
	default:
		return "incoming"
	}
}

// DetailMarkdown renders the processes behind an entry as markdown.
func DetailMarkdown(e investigate.Entry, procs []sockets.ProcessInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", helpers.SanitizeTerminal(e.Label))
	fmt.Fprintf(&b, "- **Address:** `%s`\n", e.Address)
	fmt.Fprintf(&b, "- **Direction:** %s\n", direction(e))
	if loc := e.Location.String(); loc != "" {
		fmt.Fprintf(&b, "- **Location:** %s\n", helpers.SanitizeTerminal(loc))
	}
	b.WriteString("\n")

	if len(procs) == 0 {
		b.WriteString("_No processes found._\n")
		return b.String()
	}

	for _, p := range procs {
		fmt.Fprintf(&b, "### %s (pid %d)\n\n", helpers.SanitizeTerminal(p.Name), p.PID)
		fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.ReplaceAll(helpers.SanitizeTerminal(p.CommandLine()), "```", "'''"))
	}
	return b.String()
}

// DetailText renders the processes behind an entry as plain text.
func DetailText(e investigate.Entry, procs []sockets.ProcessInfo) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (%s)", Direction(e), helpers.SanitizeTerminal(e.Label), e.Address)
	if loc := e.Location.String(); loc != "" {
		fmt.Fprintf(&b, " [%s]", helpers.SanitizeTerminal(loc))
	}
	b.WriteString("\n")

	if len(procs) == 0 {
		b.WriteString("  no processes found\n")
		return b.String()
	}

	for _, p := range procs {
		fmt.Fprintf(&b, "  %7d  %s\n", p.PID, helpers.SanitizeTerminal(p.CommandLine()))
	}
	return b.String()
}
