package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen picker and blocks until the operator quits.
// Cancelling ctx ends the session without an error.
func Run(ctx context.Context, source Source, target string) error {
	model, err := NewModel(ctx, source, target)
	if err != nil {
		return fmt.Errorf("failed to create UI model: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("interactive session failed: %w", err)
	}

	if m, ok := final.(Model); ok && m.Err() != nil {
		if errors.Is(m.Err(), context.Canceled) {
			return nil
		}
		return m.Err()
	}
	return nil
}
