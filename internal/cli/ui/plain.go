package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/coral-mesh/whotalks/internal/cli/helpers"
)

// LineReader reads one line of operator input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// PlainPicker is the line-oriented picker used without a full terminal.
type PlainPicker struct {
	source Source
	target string
	reader LineReader
	out    io.Writer
}

// NewPlainPicker creates a picker reading selections from in through readline.
func NewPlainPicker(source Source, target string, in io.ReadCloser, out io.Writer) (*PlainPicker, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "select> ",
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create line reader: %w", err)
	}
	return NewPlainPickerWithReader(source, target, rl, out), nil
}

// NewPlainPickerWithReader creates a picker over an existing line reader.
func NewPlainPickerWithReader(source Source, target string, reader LineReader, out io.Writer) *PlainPicker {
	return &PlainPicker{source: source, target: target, reader: reader, out: out}
}

// Run loops between the numbered listing and the detail of the chosen
// address until input ends or the operator interrupts. Both end the
// session without an error; a failed snapshot is returned.
func (p *PlainPicker) Run(ctx context.Context) error {
	defer func() { _ = p.reader.Close() }()

	for {
		entries, err := p.source.Snapshot(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		fmt.Fprintf(p.out, "Connections on %s:\n", p.target)
		for n, e := range entries {
			line := fmt.Sprintf("%3d) %s %s", n+1, Direction(e), e.Label)
			if e.Label != e.Address {
				line += " (" + e.Address + ")"
			}
			if loc := e.Location.String(); loc != "" {
				line += " [" + loc + "]"
			}
			fmt.Fprintln(p.out, helpers.SanitizeTerminal(line))
		}

		if len(entries) == 0 {
			fmt.Fprintln(p.out, "  no connections")
		}

		choice, done := p.choose(len(entries))
		if done {
			return nil
		}
		if choice < 0 {
			continue
		}

		entry := entries[choice]
		procs, err := p.source.Processes(ctx, entry.Address)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintln(p.out)
		fmt.Fprint(p.out, DetailText(entry, procs))

		p.reader.SetPrompt("press Enter to continue ")
		if _, err := p.reader.Readline(); err != nil {
			return nil
		}
		p.reader.SetPrompt("select> ")
	}
}

// choose reads selections until one is valid. It returns -1 to re-list and
// done when input is exhausted or interrupted.
func (p *PlainPicker) choose(count int) (index int, done bool) {
	for {
		line, err := p.reader.Readline()
		if err != nil {
			return 0, true
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			return -1, false
		case "q", "quit", "exit":
			return 0, true
		}

		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > count {
			fmt.Fprintf(p.out, "enter a number between 1 and %d, or q to quit\n", count)
			continue
		}
		return n - 1, false
	}
}
