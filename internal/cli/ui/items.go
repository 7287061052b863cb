package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/coral-mesh/whotalks/internal/cli/helpers"
	"github.com/coral-mesh/whotalks/internal/investigate"
)

// Direction returns the marker shown in front of an entry.
func Direction(e investigate.Entry) string {
	switch {
	case e.Listening():
		return "◉"
	case e.Outgoing:
		return "→"
	default:
		return "←"
	}
}

// entryItem adapts an Entry to list.Item.
type entryItem struct {
	entry investigate.Entry
}

func (i entryItem) Title() string {
	return Direction(i.entry) + " " + helpers.SanitizeTerminal(i.entry.Label)
}

func (i entryItem) Description() string {
	parts := []string{i.entry.Address}
	if loc := i.entry.Location.String(); loc != "" {
		parts = append(parts, loc)
	}
	return helpers.SanitizeTerminal(strings.Join(parts, " · "))
}

func (i entryItem) FilterValue() string {
	return i.entry.Address + " " + i.entry.Label + " " + i.entry.Location.String()
}

func toItems(entries []investigate.Entry) []list.Item {
	items := make([]list.Item, len(entries))
	for n, e := range entries {
		items[n] = entryItem{entry: e}
	}
	return items
}
