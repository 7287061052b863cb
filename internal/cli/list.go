package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/whotalks/internal/cli/helpers"
	"github.com/coral-mesh/whotalks/internal/investigate"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// entryRow is one line of `whotalks list` output.
type entryRow struct {
	Direction string `header:"DIR" json:"direction"`
	Address   string `header:"ADDRESS" json:"address"`
	Label     string `header:"LABEL" json:"label"`
	Location  string `header:"LOCATION" json:"location,omitempty"`
}

func toEntryRows(entries []investigate.Entry) []entryRow {
	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		dir := "in"
		switch {
		case e.Listening():
			dir = "listen"
		case e.Outgoing:
			dir = "out"
		}
		rows[i] = entryRow{
			Direction: dir,
			Address:   e.Address,
			Label:     e.Label,
			Location:  e.Location.String(),
		}
	}
	return rows
}

// processRow is one line of the process listing.
type processRow struct {
	PID     int      `header:"PID" json:"pid"`
	Name    string   `header:"NAME" json:"name"`
	Command string   `header:"COMMAND" json:"command"`
	Args    []string `json:"args"`
}

func toProcessRows(procs []sockets.ProcessInfo) []processRow {
	rows := make([]processRow, len(procs))
	for i, p := range procs {
		rows[i] = processRow{PID: p.PID, Name: p.Name, Command: p.CommandLine(), Args: p.Args}
	}
	return rows
}

func newListCmd(d deps, flags *globalFlags) *cobra.Command {
	var (
		format string
		where  string
	)

	cmd := &cobra.Command{
		Use:   "list <user@host>",
		Short: "Print the labeled connection summary and exit",
		Long: `Print every peer of the remote host, sorted as listening ports, then
outgoing, then incoming connections.

--where takes a boolean expression over address, label, location,
country, city, outgoing and listening.`,
		Example: `  whotalks list ops@web1
  whotalks list ops@web1 -o json --where 'outgoing && country != "DE"'`,
		Args: targetArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, helpers.SupportedFormats); err != nil {
				return err
			}

			var filter *investigate.Filter
			if where != "" {
				f, err := investigate.CompileFilter(where)
				if err != nil {
					return err
				}
				filter = f
			}

			s, err := openSession(cmd.Context(), d, flags, args[0], d.stderr)
			if err != nil {
				return err
			}
			defer s.Close()

			return runList(cmd.Context(), s, filter, helpers.OutputFormat(format), cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.SupportedFormats)
	helpers.AddWhereFlag(cmd, &where)

	return cmd
}

func runList(ctx context.Context, s *session, filter *investigate.Filter, format helpers.OutputFormat, out io.Writer) error {
	entries, err := s.investigator.Snapshot(ctx)
	if err != nil {
		return err
	}

	entries, err = filter.Apply(entries)
	if err != nil {
		return err
	}

	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.Format(toEntryRows(entries), out)
}

// runProcesses prints the processes behind one address.
func runProcesses(ctx context.Context, s *session, address string, format helpers.OutputFormat, out io.Writer) error {
	procs, err := s.investigator.Processes(ctx, address)
	if err != nil {
		return err
	}

	if format == helpers.FormatTable {
		header := s.labeler.Label(address)
		if header != address {
			header += " (" + address + ")"
		}
		if loc := s.enricher.Locate(ctx, address).String(); loc != "" {
			header += " [" + loc + "]"
		}
		if _, err := fmt.Fprintf(out, "Processes behind %s:\n", helpers.SanitizeTerminal(header)); err != nil {
			return err
		}
		if len(procs) == 0 {
			_, err := fmt.Fprintln(out, "  no processes found")
			return err
		}
	}

	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.Format(toProcessRows(procs), out)
}
