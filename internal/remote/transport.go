package remote

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Transport selects the Runner implementation.
type Transport string

const (
	// TransportExec shells out to the local ssh binary, honoring ~/.ssh/config.
	TransportExec Transport = "exec"
	// TransportNative uses the built-in SSH client.
	TransportNative Transport = "native"
)

var _ pflag.Value = (*Transport)(nil)

// Transports lists the supported values.
func Transports() []Transport {
	return []Transport{TransportExec, TransportNative}
}

// ParseTransport validates a transport name.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportExec, TransportNative:
		return t, nil
	}
	return "", fmt.Errorf("unsupported transport %q, must be one of: exec, native", s)
}

// String implements pflag.Value.
func (t *Transport) String() string {
	return string(*t)
}

// Set implements pflag.Value.
func (t *Transport) Set(s string) error {
	parsed, err := ParseTransport(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Type implements pflag.Value.
func (t *Transport) Type() string {
	return "transport"
}
