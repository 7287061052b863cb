// Package ui implements the interactive connection picker.
package ui

import (
	"context"
	"os"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/coral-mesh/whotalks/internal/investigate"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// state represents the current screen of the picker.
type state int

const (
	// stateLoading waits for a connection snapshot.
	stateLoading state = iota
	// stateListing shows the connection list and waits for a selection.
	stateListing
	// stateDetailLoading waits for the processes behind the selection.
	stateDetailLoading
	// stateDetail shows the processes until the operator acknowledges.
	stateDetail
	// stateFatal ends the session with an error.
	stateFatal
)

// Source provides the data the picker displays. *investigate.Investigator
// satisfies it.
type Source interface {
	Snapshot(ctx context.Context) ([]investigate.Entry, error)
	Processes(ctx context.Context, key string) ([]sockets.ProcessInfo, error)
}

// Model is the bubbletea model of the picker.
type Model struct {
	ctx    context.Context
	source Source
	target string

	currentState state
	list         list.Model
	spinner      spinner.Model

	selected  investigate.Entry
	processes []sockets.ProcessInfo

	err error

	renderer *glamour.TermRenderer
	width    int
	height   int

	quitting bool
}

// NewModel creates a picker for target backed by source.
func NewModel(ctx context.Context, source Source, target string) (Model, error) {
	s := spinner.New()
	s.Spinner = spinner.Dot

	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Connections on " + target
	l.SetStatusBarItemName("address", "addresses")
	l.DisableQuitKeybindings()

	// Create markdown renderer with NO_COLOR support.
	rendererOpts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if os.Getenv("NO_COLOR") != "" {
		rendererOpts = append(rendererOpts, glamour.WithStylePath("notty"))
	} else {
		rendererOpts = append(rendererOpts, glamour.WithAutoStyle())
	}

	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return Model{}, err
	}

	return Model{
		ctx:          ctx,
		source:       source,
		target:       target,
		currentState: stateLoading,
		list:         l,
		spinner:      s,
		renderer:     renderer,
		width:        80,
		height:       24,
	}, nil
}

// Init initializes the model (Bubbletea interface).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		snapshotCmd(m.ctx, m.source),
	)
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}
