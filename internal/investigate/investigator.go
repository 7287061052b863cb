// Package investigate ties the remote runner, the socket parser, the labeler
// and the geolocation enricher together into the listing and detail views.
package investigate

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/whotalks/internal/constants"
	"github.com/coral-mesh/whotalks/internal/geo"
	"github.com/coral-mesh/whotalks/internal/labels"
	"github.com/coral-mesh/whotalks/internal/remote"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// CmdlineMode selects how process command lines are fetched.
type CmdlineMode string

const (
	// CmdlineBatch fetches every command line in a single remote call.
	CmdlineBatch CmdlineMode = "batch"
	// CmdlinePerPID runs one remote call per process.
	CmdlinePerPID CmdlineMode = "per-pid"
)

// Entry is one row of the listing.
type Entry struct {
	sockets.Summary
	Label    string       `json:"label"`
	Location geo.Location `json:"location"`
}

// Options configures an Investigator.
type Options struct {
	ListingCommand        string
	ProcessListingCommand string
	CmdlineMode           CmdlineMode
	// MaxSessions bounds per-pid lookups in flight.
	MaxSessions int
	// GeoConcurrency bounds geolocation lookups in flight.
	GeoConcurrency int
	Policy         sockets.DirectionPolicy
}

// DefaultOptions returns the options matching a stock Linux host.
func DefaultOptions() Options {
	return Options{
		ListingCommand:        constants.DefaultListingCommand,
		ProcessListingCommand: constants.DefaultProcessListingCommand,
		CmdlineMode:           CmdlineBatch,
		MaxSessions:           constants.DefaultMaxSessions,
		GeoConcurrency:        constants.DefaultGeoConcurrency,
		Policy:                sockets.DefaultDirectionPolicy(),
	}
}

// Investigator answers "who talks to whom" for one remote host.
type Investigator struct {
	runner   remote.Runner
	labeler  *labels.Labeler
	enricher *geo.Enricher
	opts     Options
	logger   zerolog.Logger
}

// New creates an investigator. A nil labeler labels nothing and a nil
// enricher disables geolocation.
func New(runner remote.Runner, labeler *labels.Labeler, enricher *geo.Enricher, opts Options, logger zerolog.Logger) *Investigator {
	defaults := DefaultOptions()
	if opts.ListingCommand == "" {
		opts.ListingCommand = defaults.ListingCommand
	}
	if opts.ProcessListingCommand == "" {
		opts.ProcessListingCommand = defaults.ProcessListingCommand
	}
	if opts.CmdlineMode == "" {
		opts.CmdlineMode = defaults.CmdlineMode
	}
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}
	if opts.GeoConcurrency < 1 {
		opts.GeoConcurrency = defaults.GeoConcurrency
	}
	if opts.Policy == nil {
		opts.Policy = defaults.Policy
	}
	if labeler == nil {
		labeler = labels.New()
	}
	if enricher == nil {
		enricher = geo.NewEnricher(nil, logger)
	}

	return &Investigator{
		runner:   runner,
		labeler:  labeler,
		enricher: enricher,
		opts:     opts,
		logger:   logger.With().Str("component", "investigate").Logger(),
	}
}

// Snapshot lists the remote sockets and returns them labeled, located and
// sorted. A failing listing command is fatal; everything after it degrades.
func (i *Investigator) Snapshot(ctx context.Context) ([]Entry, error) {
	output, err := i.runner.Run(ctx, i.opts.ListingCommand)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	parsed := sockets.ParseRecords(output)
	if parsed.Skipped > 0 {
		i.logger.Warn().
			Int("skipped", parsed.Skipped).
			Strs("samples", parsed.Malformed).
			Msg("Skipped unparseable listing lines")
	}

	summaries := sockets.Summarize(parsed.Records, i.opts.Policy)

	addrs := make([]string, len(summaries))
	for n, s := range summaries {
		addrs[n] = s.Address
	}
	locations := i.enricher.LocateAll(ctx, addrs, i.opts.GeoConcurrency)

	entries := make([]Entry, len(summaries))
	for n, s := range summaries {
		entries[n] = Entry{
			Summary:  s,
			Label:    i.labeler.Label(s.Address),
			Location: locations[s.Address],
		}
	}

	SortEntries(entries)

	i.logger.Debug().Int("entries", len(entries)).Msg("Snapshot taken")
	return entries, nil
}

// SortEntries orders entries as listening keys, then outgoing, then incoming.
// It runs two stable passes, outgoing first and listening second, so the
// listening pass dominates and first-appearance order survives within groups.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Outgoing && !entries[b].Outgoing
	})
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Listening() && !entries[b].Listening()
	})
}

// Processes returns the processes holding sockets behind key, with their
// command lines. Remote failures yield an empty or partial result.
func (i *Investigator) Processes(ctx context.Context, key string) ([]sockets.ProcessInfo, error) {
	output, err := i.runner.Run(ctx, i.opts.ProcessListingCommand)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		i.logger.Debug().Err(err).Str("addr", key).Msg("Process listing failed")
		return nil, nil
	}

	owners := sockets.OwnersFor(sockets.ParseRecords(output).Records, key)
	if len(owners) == 0 {
		return nil, nil
	}

	pids := make([]int, len(owners))
	for n, o := range owners {
		pids[n] = o.PID
	}

	var args map[int][]string
	switch i.opts.CmdlineMode {
	case CmdlinePerPID:
		args = i.cmdlinesPerPID(ctx, pids)
	default:
		args = i.cmdlinesBatch(ctx, pids)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	procs := make([]sockets.ProcessInfo, len(owners))
	for n, o := range owners {
		procs[n] = sockets.ProcessInfo{PID: o.PID, Name: o.Name, Args: args[o.PID]}
	}
	return procs, nil
}

func (i *Investigator) cmdlinesBatch(ctx context.Context, pids []int) map[int][]string {
	output, err := i.runner.Run(ctx, sockets.CmdlineSnapshotCommand(pids))
	if err != nil {
		i.logger.Debug().Err(err).Ints("pids", pids).Msg("Command line snapshot failed")
		return nil
	}
	return sockets.ParseCmdlineSnapshot(output)
}

func (i *Investigator) cmdlinesPerPID(ctx context.Context, pids []int) map[int][]string {
	results := make([][]string, len(pids))

	g := new(errgroup.Group)
	g.SetLimit(i.opts.MaxSessions)
	for n, pid := range pids {
		g.Go(func() error {
			output, err := i.runner.Run(ctx, sockets.CmdlineCommand(pid))
			if err != nil {
				i.logger.Debug().Err(err).Int("pid", pid).Msg("Command line lookup failed")
				return nil
			}
			results[n] = sockets.ParseCmdline([]byte(output))
			return nil
		})
	}
	_ = g.Wait()

	args := make(map[int][]string, len(pids))
	for n, pid := range pids {
		args[pid] = results[n]
	}
	return args
}
