// Package errors provides small cleanup helpers used with defer.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose properly closes an io.Closer with logging.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferCloseIgnoring is DeferClose for closers whose close error is expected
// in normal operation, such as an SSH session that already received its exit
// status and reports io.EOF on Close.
func DeferCloseIgnoring(logger zerolog.Logger, closer io.Closer, ignore error, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && err != ignore {
		logger.Debug().Err(err).Msg(msg)
	}
}
