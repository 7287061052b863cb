package config

import (
	"time"

	"github.com/coral-mesh/whotalks/internal/labels"
)

// SchemaVersion is the current config file schema version.
const SchemaVersion = "1"

// Config is the whotalks configuration file (~/.whotalks/config.yaml).
type Config struct {
	Version   string          `yaml:"version"`
	Remote    RemoteConfig    `yaml:"remote"`
	Direction DirectionConfig `yaml:"direction"`
	Labels    LabelsConfig    `yaml:"labels"`
	Geo       GeoConfig       `yaml:"geo"`
	Log       LogConfig       `yaml:"log"`
}

// RemoteConfig controls how commands reach the inspected host.
type RemoteConfig struct {
	// Transport is "exec" (local ssh binary) or "native" (built-in client).
	Transport string `yaml:"transport" env:"WHOTALKS_TRANSPORT"`
	// SSHBinary is the ssh executable used by the exec transport.
	SSHBinary string `yaml:"ssh_binary,omitempty" env:"WHOTALKS_SSH_BINARY"`
	// SSHOptions are extra arguments for the exec transport.
	SSHOptions []string `yaml:"ssh_options,omitempty" env:"WHOTALKS_SSH_OPTIONS"`
	// MaxSessions bounds concurrent remote commands (1 = sequential).
	MaxSessions int           `yaml:"max_sessions" env:"WHOTALKS_MAX_SESSIONS"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"WHOTALKS_DIAL_TIMEOUT"`
	// DialRetries is the number of connection attempts of the native transport.
	DialRetries int `yaml:"dial_retries" env:"WHOTALKS_DIAL_RETRIES"`
	// KnownHosts is the known_hosts file of the native transport.
	KnownHosts            string   `yaml:"known_hosts,omitempty" env:"WHOTALKS_KNOWN_HOSTS"`
	InsecureIgnoreHostKey bool     `yaml:"insecure_ignore_host_key,omitempty" env:"WHOTALKS_INSECURE_IGNORE_HOST_KEY"`
	IdentityFiles         []string `yaml:"identity_files,omitempty" env:"WHOTALKS_IDENTITY_FILES"`

	// ListingCommand prints the socket table without process annotations.
	ListingCommand string `yaml:"listing_command" env:"WHOTALKS_LISTING_COMMAND"`
	// ProcessListingCommand prints the socket table with users:((...)) annotations.
	ProcessListingCommand string `yaml:"process_listing_command" env:"WHOTALKS_PROCESS_LISTING_COMMAND"`
	// CmdlineMode is "batch" (one remote call) or "per-pid".
	CmdlineMode string `yaml:"cmdline_mode" env:"WHOTALKS_CMDLINE_MODE"`
}

// DirectionConfig tunes the outgoing/incoming heuristic.
type DirectionConfig struct {
	// EphemeralThreshold: local ports above it are treated as outgoing.
	EphemeralThreshold int `yaml:"ephemeral_threshold" env:"WHOTALKS_EPHEMERAL_THRESHOLD"`
}

// LabelsConfig holds address labeling rules.
type LabelsConfig struct {
	// Rules replace the built-in static table when non-empty.
	Rules []labels.Rule `yaml:"rules,omitempty"`
	// Hostnames are resolved at startup; each address becomes a rule.
	Hostnames []string `yaml:"hostnames,omitempty" env:"WHOTALKS_LABEL_HOSTNAMES"`
}

// GeoConfig controls geolocation enrichment.
type GeoConfig struct {
	Enabled     bool          `yaml:"enabled" env:"WHOTALKS_GEO_ENABLED"`
	TokenFile   string        `yaml:"token_file" env:"WHOTALKS_GEO_TOKEN_FILE"`
	Endpoint    string        `yaml:"endpoint" env:"WHOTALKS_GEO_ENDPOINT"`
	Timeout     time.Duration `yaml:"timeout" env:"WHOTALKS_GEO_TIMEOUT"`
	Concurrency int           `yaml:"concurrency" env:"WHOTALKS_GEO_CONCURRENCY"`
}

// LogConfig controls diagnostics written to stderr.
type LogConfig struct {
	Level string `yaml:"level" env:"WHOTALKS_LOG_LEVEL"`
}
