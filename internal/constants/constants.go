// Package constants defines shared configuration constants.
package constants

import "time"

var (
	ConfigFile = "config.yaml"

	// LogFile receives logs while the full-screen picker owns the terminal.
	LogFile = "whotalks.log"

	DefaultDir = ".whotalks"

	// DefaultTokenFile is the ipinfo.io API token, relative to the home directory.
	DefaultTokenFile = DefaultDir + "/" + "ipinfo_token"

	// DefaultGeoEndpoint is the ipinfo.io base URL used for geolocation lookups.
	DefaultGeoEndpoint = "https://ipinfo.io"

	DefaultSSHBinary = "ssh"

	// DefaultKnownHosts is the known_hosts file, relative to the home directory.
	DefaultKnownHosts = ".ssh/known_hosts"
)

// Remote command defaults.
const (
	// DefaultListingCommand lists TCP sockets without process annotations.
	DefaultListingCommand = "ss -tan"

	// DefaultProcessListingCommand lists TCP sockets with users:((...)) annotations.
	// Needs root on the remote side to see sockets owned by other users.
	DefaultProcessListingCommand = "ss -tanp"

	// DefaultCmdlineMode fetches all command lines in one remote call.
	DefaultCmdlineMode = "batch"
)

// Limits and thresholds.
const (
	// DefaultEphemeralThreshold is the local port above which a connection is
	// assumed to have been initiated by this host.
	DefaultEphemeralThreshold = 32768

	// DefaultMaxSessions serializes SSH sessions. Running many sessions in
	// parallel against one target hangs some sshd configurations.
	DefaultMaxSessions = 1

	DefaultGeoConcurrency = 8

	DefaultDialRetries = 1
)

// Timeouts.
const (
	DefaultDialTimeout = 10 * time.Second

	DefaultGeoTimeout = 5 * time.Second

	DefaultDNSTimeout = 3 * time.Second
)
