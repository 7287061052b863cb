package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ExecConfig configures ExecRunner.
type ExecConfig struct {
	// Binary is the ssh executable. Defaults to "ssh".
	Binary string
	// Options are extra arguments placed before the destination, e.g. ["-i", "key"].
	Options []string
	// ConnectTimeout is passed as -o ConnectTimeout. Zero leaves it unset.
	ConnectTimeout time.Duration
}

// ExecRunner runs commands through the local ssh binary, one process per
// command. Authentication, jump hosts and multiplexing come from the user's
// ssh configuration.
type ExecRunner struct {
	target Target
	cfg    ExecConfig
	logger zerolog.Logger
}

// NewExecRunner creates an ExecRunner for target.
func NewExecRunner(target Target, cfg ExecConfig, logger zerolog.Logger) *ExecRunner {
	if cfg.Binary == "" {
		cfg.Binary = "ssh"
	}
	return &ExecRunner{
		target: target,
		cfg:    cfg,
		logger: logger.With().Str("component", "ssh_exec").Str("target", target.String()).Logger(),
	}
}

// Args returns the ssh argument vector for command.
func (r *ExecRunner) Args(command string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if r.cfg.ConnectTimeout > 0 {
		secs := int(r.cfg.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(secs))
	}
	if r.target.Port != 0 {
		args = append(args, "-p", strconv.Itoa(r.target.Port))
	}
	args = append(args, r.cfg.Options...)
	return append(args, "--", r.target.Destination(), command)
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, command string) (string, error) {
	//nolint:gosec // G204: the binary and target come from the operator's own CLI/config.
	cmd := exec.CommandContext(ctx, r.cfg.Binary, r.Args(command)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("command", command).Msg("Running remote command")
	started := time.Now()

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("ssh %s %q failed: %w", r.target, command, err)
		}
		return "", fmt.Errorf("ssh %s %q failed: %w: %s", r.target, command, err, msg)
	}

	r.logger.Debug().
		Str("command", command).
		Int("bytes", stdout.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("Remote command finished")

	return stdout.String(), nil
}

// Close implements Runner. ExecRunner holds no connection.
func (r *ExecRunner) Close() error {
	return nil
}
