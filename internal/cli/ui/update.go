package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model (Bubbletea interface).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case spinner.TickMsg:
		if m.loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.currentState = stateListing
		cmd := m.list.SetItems(toItems(msg.entries))
		return m, cmd

	case processesMsg:
		if m.currentState != stateDetailLoading || msg.key != m.selected.Address {
			return m, nil
		}
		if msg.err != nil && (errors.Is(msg.err, context.Canceled) || errors.Is(msg.err, context.DeadlineExceeded)) {
			return m.fail(msg.err)
		}
		m.processes = msg.processes
		m.currentState = stateDetail
		return m, nil
	}

	if m.currentState == stateListing {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKeyMsg handles keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.currentState {
	case stateListing:
		return m.handleListingKey(msg)

	case stateDetail:
		switch msg.String() {
		case "enter", "esc", "q", "backspace", " ":
			return m.refresh()
		}
	}

	return m, nil
}

func (m Model) handleListingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() != list.Filtering {
		switch msg.String() {
		case "enter":
			item, ok := m.list.SelectedItem().(entryItem)
			if !ok {
				return m, nil
			}
			m.selected = item.entry
			m.processes = nil
			m.currentState = stateDetailLoading
			return m, tea.Batch(m.spinner.Tick, processesCmd(m.ctx, m.source, item.entry.Address))

		case "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// refresh returns to the listing with a fresh snapshot.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.currentState = stateLoading
	return m, tea.Batch(m.spinner.Tick, snapshotCmd(m.ctx, m.source))
}

func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	m.currentState = stateFatal
	return m, tea.Quit
}

func (m Model) loading() bool {
	return m.currentState == stateLoading || m.currentState == stateDetailLoading
}
