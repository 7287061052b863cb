// Package remote executes shell commands on the inspected host over SSH.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned for targets that are not user@host[:port].
var ErrInvalidTarget = errors.New("invalid target")

// Runner runs one shell command on the remote host and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Target identifies the remote host.
type Target struct {
	User string
	Host string
	// Port is 0 when not given, leaving the choice to ssh config / 22.
	Port int
}

// ParseTarget parses "user@host", "user@host:port" or "user@[v6addr]:port".
func ParseTarget(s string) (Target, error) {
	user, hostPort, ok := strings.Cut(s, "@")
	if !ok || user == "" || hostPort == "" {
		return Target{}, fmt.Errorf("%w %q: expected user@host", ErrInvalidTarget, s)
	}

	t := Target{User: user, Host: hostPort}

	if strings.HasPrefix(hostPort, "[") {
		end := strings.Index(hostPort, "]")
		if end < 0 {
			return Target{}, fmt.Errorf("%w %q: unterminated IPv6 address", ErrInvalidTarget, s)
		}
		t.Host = hostPort[1:end]
		rest := hostPort[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Target{}, fmt.Errorf("%w %q: unexpected %q after address", ErrInvalidTarget, s, rest)
			}
			port, err := parsePort(rest[1:])
			if err != nil {
				return Target{}, fmt.Errorf("%w %q: %w", ErrInvalidTarget, s, err)
			}
			t.Port = port
		}
	} else if host, portStr, found := strings.Cut(hostPort, ":"); found && !strings.Contains(portStr, ":") {
		port, err := parsePort(portStr)
		if err != nil {
			return Target{}, fmt.Errorf("%w %q: %w", ErrInvalidTarget, s, err)
		}
		t.Host, t.Port = host, port
	}

	if t.Host == "" {
		return Target{}, fmt.Errorf("%w %q: empty host", ErrInvalidTarget, s)
	}
	return t, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return port, nil
}

// Destination returns user@host as understood by the ssh binary.
func (t Target) Destination() string {
	return t.User + "@" + t.Host
}

// Address returns host:port for dialing, defaulting to port 22.
func (t Target) Address() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

func (t Target) String() string {
	if t.Port == 0 {
		return t.Destination()
	}
	return t.User + "@" + t.Address()
}

// limited bounds how many commands a Runner executes at once.
type limited struct {
	Runner
	sem chan struct{}
}

// Limit wraps r so that at most n commands run concurrently. n < 1 means 1.
func Limit(r Runner, n int) Runner {
	if n < 1 {
		n = 1
	}
	return &limited{Runner: r, sem: make(chan struct{}, n)}
}

func (l *limited) Run(ctx context.Context, command string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()

	return l.Runner.Run(ctx, command)
}
