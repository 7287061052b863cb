// Package config implements the 'whotalks config' command family.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/whotalks/internal/config"
)

// NewConfigCmd creates the config command and its subcommands. configFile
// points at the value of the global --config flag.
func NewConfigCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize whotalks configuration",
		Long: `Inspect and initialize whotalks configuration.

Configuration Priority:
  1. Command line flags (highest)
  2. WHOTALKS_* environment variables
  3. Config file (--config, or ~/.whotalks/config.yaml)
  4. Built-in defaults

Environment Variables:
  WHOTALKS_CONFIG    Override the base directory holding .whotalks/ (default: ~)`,
	}

	cmd.AddCommand(newPathCmd(configFile))
	cmd.AddCommand(newViewCmd(configFile))
	cmd.AddCommand(newValidateCmd(configFile))
	cmd.AddCommand(newInitCmd(configFile))

	return cmd
}

// resolve returns the loader and the config file path in effect.
func resolve(configFile *string) (*config.Loader, string) {
	loader := config.NewLoader()
	if configFile != nil && *configFile != "" {
		return loader, *configFile
	}
	return loader, loader.ConfigPath()
}

func load(configFile *string) (*config.Config, string, error) {
	loader, path := resolve(configFile)
	explicit := configFile != nil && *configFile != ""
	cfg, err := loader.LoadFile(path, explicit)
	return cfg, path, err
}

func newPathCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path := resolve(configFile)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newViewCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Long: `Display the configuration after defaults, the config file and
WHOTALKS_* environment variables are merged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(configFile)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newValidateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration and report every invalid value:
- transport must be exec or native
- session, retry and concurrency limits must be positive
- the ephemeral threshold must be a port number
- label rules need a pattern and a label`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := load(configFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", path)
			return err
		},
	}
}

func newInitCmd(configFile *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, path := resolve(configFile)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // G304: operator-chosen path.
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}

			if err := writeYAML(f, config.DefaultConfig(loader.HomeDir())); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func writeYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
