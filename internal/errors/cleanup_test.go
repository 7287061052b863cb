package errors

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *mockCloser
		wantLogged bool
	}{
		{name: "nil closer"},
		{name: "successful close", closer: &mockCloser{}},
		{name: "close with error", closer: &mockCloser{closeErr: errors.New("boom")}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			var closer io.Closer
			if tt.closer != nil {
				closer = tt.closer
			}
			DeferClose(logger, closer, "close failed")

			if tt.closer != nil {
				assert.True(t, tt.closer.closed)
			}
			assert.Equal(t, tt.wantLogged, bytes.Contains(buf.Bytes(), []byte("close failed")))
		})
	}
}

func TestDeferCloseIgnoring(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	DeferCloseIgnoring(logger, &mockCloser{closeErr: io.EOF}, io.EOF, "session close")
	assert.Empty(t, buf.String())

	DeferCloseIgnoring(logger, &mockCloser{closeErr: errors.New("reset")}, io.EOF, "session close")
	assert.Contains(t, buf.String(), "session close")
}
