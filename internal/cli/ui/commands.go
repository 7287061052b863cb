package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// snapshotCmd lists the remote connections in the background.
func snapshotCmd(ctx context.Context, source Source) tea.Cmd {
	return func() tea.Msg {
		entries, err := source.Snapshot(ctx)
		return snapshotMsg{entries: entries, err: err}
	}
}

// processesCmd looks up the processes behind key in the background.
func processesCmd(ctx context.Context, source Source, key string) tea.Cmd {
	return func() tea.Msg {
		procs, err := source.Processes(ctx, key)
		return processesMsg{key: key, processes: procs, err: err}
	}
}
