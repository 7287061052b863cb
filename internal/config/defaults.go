package config

import (
	"path/filepath"

	"github.com/coral-mesh/whotalks/internal/constants"
	"github.com/coral-mesh/whotalks/internal/labels"
)

// DefaultConfig returns a config with sensible defaults. homeDir anchors the
// token and known_hosts paths.
func DefaultConfig(homeDir string) *Config {
	return &Config{
		Version: SchemaVersion,
		Remote: RemoteConfig{
			Transport:             "exec",
			SSHBinary:             constants.DefaultSSHBinary,
			MaxSessions:           constants.DefaultMaxSessions,
			DialTimeout:           constants.DefaultDialTimeout,
			DialRetries:           constants.DefaultDialRetries,
			KnownHosts:            filepath.Join(homeDir, constants.DefaultKnownHosts),
			IdentityFiles:         defaultIdentityFiles(homeDir),
			ListingCommand:        constants.DefaultListingCommand,
			ProcessListingCommand: constants.DefaultProcessListingCommand,
			CmdlineMode:           constants.DefaultCmdlineMode,
		},
		Direction: DirectionConfig{
			EphemeralThreshold: constants.DefaultEphemeralThreshold,
		},
		Labels: LabelsConfig{
			Rules:     labels.DefaultRules(),
			Hostnames: labels.DefaultHostnames(),
		},
		Geo: GeoConfig{
			Enabled:     true,
			TokenFile:   filepath.Join(homeDir, constants.DefaultTokenFile),
			Endpoint:    constants.DefaultGeoEndpoint,
			Timeout:     constants.DefaultGeoTimeout,
			Concurrency: constants.DefaultGeoConcurrency,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

func defaultIdentityFiles(homeDir string) []string {
	return []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_ecdsa"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
	}
}
