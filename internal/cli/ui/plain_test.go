package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/whotalks/internal/sockets"
)

// scriptedReader replays lines, then returns end.
type scriptedReader struct {
	lines  []string
	end    error
	closed bool
}

func (s *scriptedReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", s.end
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) SetPrompt(string) {}

func (s *scriptedReader) Close() error {
	s.closed = true
	return nil
}

func TestPlainPicker_SelectThenEOF(t *testing.T) {
	source := &fakeSource{
		entries: testEntries(),
		processes: map[string][]sockets.ProcessInfo{
			"93.184.216.34": {{PID: 4242, Name: "curl", Args: []string{"curl", "-s"}}},
		},
	}
	reader := &scriptedReader{lines: []string{"7", "2", ""}, end: io.EOF}
	out := &bytes.Buffer{}

	err := NewPlainPickerWithReader(source, "ops@web1", reader, out).Run(context.Background())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Connections on ops@web1:")
	assert.Contains(t, text, "  1) ◉ listening on 22 (:22)")
	assert.Contains(t, text, "  2) → 93.184.216.34 [Norwell, US]")
	assert.Contains(t, text, "enter a number between 1 and 2")
	assert.Contains(t, text, "4242  curl -s")
	assert.Equal(t, []string{"93.184.216.34"}, source.lookups)
	assert.Equal(t, 2, source.snapshots, "the listing is refreshed after the detail view")
	assert.True(t, reader.closed)
}

func TestPlainPicker_InterruptExitsCleanly(t *testing.T) {
	source := &fakeSource{entries: testEntries()}
	reader := &scriptedReader{end: readline.ErrInterrupt}

	err := NewPlainPickerWithReader(source, "ops@web1", reader, io.Discard).Run(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, source.lookups)
}

func TestPlainPicker_Quit(t *testing.T) {
	source := &fakeSource{entries: testEntries()}
	reader := &scriptedReader{lines: []string{"q"}, end: io.EOF}

	assert.NoError(t, NewPlainPickerWithReader(source, "ops@web1", reader, io.Discard).Run(context.Background()))
	assert.Equal(t, 1, source.snapshots)
}

func TestPlainPicker_SnapshotErrorIsReturned(t *testing.T) {
	source := &fakeSource{snapshotErr: errors.New("failed to list connections: exit status 255")}
	reader := &scriptedReader{end: io.EOF}

	err := NewPlainPickerWithReader(source, "ops@web1", reader, io.Discard).Run(context.Background())
	assert.ErrorContains(t, err, "exit status 255")
}
