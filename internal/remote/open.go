package remote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Options selects and configures a transport.
type Options struct {
	Transport Transport
	Exec      ExecConfig
	Native    NativeConfig
	// MaxSessions bounds concurrent remote commands. 1 serializes them.
	MaxSessions int
}

// Open returns a Runner for target wrapped in the session limit.
func Open(ctx context.Context, target Target, opts Options, logger zerolog.Logger) (Runner, error) {
	var runner Runner

	switch opts.Transport {
	case TransportExec, "":
		runner = NewExecRunner(target, opts.Exec, logger)
	case TransportNative:
		native, err := DialNative(ctx, target, opts.Native, logger)
		if err != nil {
			return nil, err
		}
		runner = native
	default:
		return nil, fmt.Errorf("unsupported transport %q", opts.Transport)
	}

	return Limit(runner, opts.MaxSessions), nil
}
