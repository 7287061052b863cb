// Package cli implements the whotalks command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	configcmd "github.com/coral-mesh/whotalks/internal/cli/config"
	"github.com/coral-mesh/whotalks/internal/cli/helpers"
	"github.com/coral-mesh/whotalks/internal/cli/ui"
	"github.com/coral-mesh/whotalks/internal/config"
	"github.com/coral-mesh/whotalks/internal/constants"
	"github.com/coral-mesh/whotalks/internal/labels"
	"github.com/coral-mesh/whotalks/internal/logging"
	"github.com/coral-mesh/whotalks/internal/remote"
	"github.com/coral-mesh/whotalks/pkg/version"
)

// deps are the outside-world hooks of the command tree.
type deps struct {
	// open connects to the inspected host.
	open func(ctx context.Context, target remote.Target, opts remote.Options, logger zerolog.Logger) (remote.Runner, error)
	// resolver resolves label hostnames.
	resolver labels.Resolver
	// isTerminal reports whether the picker can take over the terminal.
	isTerminal func() bool
	// stderr receives logs.
	stderr io.Writer
	// logFile opens the log destination used while the full-screen picker runs.
	logFile func() (io.WriteCloser, error)
}

func defaultDeps() deps {
	return deps{
		open:     remote.Open,
		resolver: net.DefaultResolver,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		stderr: os.Stderr,
		logFile: func() (io.WriteCloser, error) {
			home := config.NewLoader().HomeDir()
			return logging.OpenFile(filepath.Join(home, constants.DefaultDir, constants.LogFile))
		},
	}
}

// sessionLogOutput picks where session logs go. The full-screen picker owns
// the terminal, so its logs go to the log file, or nowhere if that cannot be
// opened. The returned func closes whatever was opened.
func sessionLogOutput(d deps, interactive bool) (io.Writer, func()) {
	if !interactive {
		return d.stderr, func() {}
	}
	if d.logFile == nil {
		return io.Discard, func() {}
	}
	f, err := d.logFile()
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configFile         string
	logLevel           string
	transport          remote.Transport
	maxSessions        int
	ephemeralThreshold int
	tokenFile          string
	noGeo              bool
	plain              bool
}

// NewRootCmd builds the whotalks command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	flags := &globalFlags{}
	var format string

	rootCmd := &cobra.Command{
		Use:   "whotalks <user@host> [address]",
		Short: "Find out which processes on a remote host talk to whom",
		Long: `whotalks lists the TCP peers of a remote host over SSH, labels and
geolocates them, and shows the processes behind a chosen address.

With only a target it starts an interactive picker. With an address as
second argument it prints the processes behind that address and exits.
Addresses of the form :PORT stand for "this host listens on PORT".`,
		Example: `  whotalks ops@web1
  whotalks ops@web1 93.184.216.34
  whotalks ops@web1:2222 :443 --transport native`,
		Args:          targetArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.SupportedFormats); err != nil {
				return err
			}

			interactive := len(args) == 1 && !flags.plain && d.isTerminal()
			logOut, closeLog := sessionLogOutput(d, interactive)
			defer closeLog()

			s, err := openSession(cmd.Context(), d, flags, args[0], logOut)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 2 {
				return runProcesses(cmd.Context(), s, args[1], helpers.OutputFormat(format), cmd.OutOrStdout())
			}

			if interactive {
				return ui.Run(cmd.Context(), s.investigator, s.target.String())
			}

			picker, err := ui.NewPlainPicker(s.investigator, s.target.String(), io.NopCloser(cmd.InOrStdin()), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return picker.Run(cmd.Context())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Config file (default ~/"+constants.DefaultDir+"/"+constants.ConfigFile+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.Var(&flags.transport, "transport", "SSH transport (exec, native)")
	pf.IntVar(&flags.maxSessions, "max-sessions", 0, "Maximum concurrent remote commands")
	pf.IntVar(&flags.ephemeralThreshold, "ephemeral-threshold", 0, "Local ports above this are treated as outgoing connections")
	pf.StringVar(&flags.tokenFile, "token-file", "", "ipinfo.io token file (default ~/"+constants.DefaultTokenFile+")")
	pf.BoolVar(&flags.noGeo, "no-geo", false, "Disable geolocation")
	pf.BoolVar(&flags.plain, "plain", false, "Use the line-oriented picker instead of the full-screen one")

	_ = rootCmd.RegisterFlagCompletionFunc("transport", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, t := range remote.Transports() {
			names = append(names, string(t))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	helpers.AddFormatFlag(rootCmd, &format, helpers.FormatTable, helpers.SupportedFormats)

	rootCmd.AddCommand(newListCmd(d, flags))
	rootCmd.AddCommand(configcmd.NewConfigCmd(&flags.configFile))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// targetArgs requires a user@host target followed by at most max-min extra arguments.
func targetArgs(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < minArgs {
			return fmt.Errorf("missing target user@host\n\nUsage:\n  %s", cmd.UseLine())
		}
		if len(args) > maxArgs {
			return fmt.Errorf("too many arguments, expected at most %d\n\nUsage:\n  %s", maxArgs, cmd.UseLine())
		}
		_, err := remote.ParseTarget(args[0])
		return err
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("whotalks version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command. An interrupt ends the run without an error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
