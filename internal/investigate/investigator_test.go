package investigate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/whotalks/internal/geo"
	"github.com/coral-mesh/whotalks/internal/labels"
	"github.com/coral-mesh/whotalks/internal/sockets"
	"github.com/coral-mesh/whotalks/internal/testutil"
)

const listing = `State  Recv-Q Send-Q Local Address:Port  Peer Address:Port
ESTAB  0      0      10.0.0.5:22         203.0.113.9:51000
LISTEN 0      128    0.0.0.0:22          0.0.0.0:*
ESTAB  0      0      10.0.0.5:54321      93.184.216.34:443
ESTAB  0      0      10.0.0.5:22         198.51.100.7:50000
LISTEN 0      511    0.0.0.0:80          0.0.0.0:*
ESTAB  0      0      10.0.0.5:40001      45.62.209.66:443
garbage
`

const processListing = `State Recv-Q Send-Q Local Address:Port Peer Address:Port Process
LISTEN 0 128 0.0.0.0:22 0.0.0.0:* users:(("sshd",pid=812,fd=3))
ESTAB 0 0 10.0.0.5:54321 93.184.216.34:443 users:(("curl",pid=4242,fd=5))
ESTAB 0 0 10.0.0.5:54322 93.184.216.34:443 users:(("curl",pid=4242,fd=6),("python3",pid=4300,fd=3))
`

type staticLookuper map[string]geo.Location

func (s staticLookuper) Lookup(_ context.Context, ip string) (geo.Location, error) {
	if loc, ok := s[ip]; ok {
		return loc, nil
	}
	return geo.Location{}, geo.ErrLookupFailed
}

func newInvestigator(t *testing.T, runner *testutil.FakeRunner, opts Options) *Investigator {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	labeler := labels.New([]labels.Rule{{Pattern: "45.62.209.66", Label: "old server"}, {Pattern: "45.", Label: "generic"}})
	enricher := geo.NewEnricher(staticLookuper{"93.184.216.34": {Country: "US", City: "Norwell"}}, logger)
	return New(runner, labeler, enricher, opts, logger)
}

func addresses(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Address
	}
	return out
}

func TestSnapshot(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tan": {Output: listing},
	})
	logger := testutil.NewTestLoggerWithOutput(t)
	labeler := labels.New([]labels.Rule{{Pattern: "45.62.209.66", Label: "old server"}, {Pattern: "45.", Label: "generic"}})
	enricher := geo.NewEnricher(staticLookuper{"93.184.216.34": {Country: "US", City: "Norwell"}}, logger)
	inv := New(runner, labeler, enricher, Options{}, logger)

	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	entries, err := inv.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{":22", ":80", "93.184.216.34", "45.62.209.66", "203.0.113.9", "198.51.100.7"}, addresses(entries))

	byAddr := make(map[string]Entry)
	for _, e := range entries {
		byAddr[e.Address] = e
	}
	assert.Equal(t, "listening on 22", byAddr[":22"].Label)
	assert.Equal(t, "old server", byAddr["45.62.209.66"].Label)
	assert.Equal(t, "203.0.113.9", byAddr["203.0.113.9"].Label)
	assert.Equal(t, "Norwell, US", byAddr["93.184.216.34"].Location.String())
	assert.True(t, byAddr["93.184.216.34"].Outgoing)
	assert.False(t, byAddr["203.0.113.9"].Outgoing)
	assert.True(t, byAddr["45.62.209.66"].Location.IsZero())
}

func TestSnapshot_ListingFailureIsFatal(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tan": {Err: errors.New("connection refused")},
	})
	inv := newInvestigator(t, runner, Options{})

	_, err := inv.Snapshot(context.Background())
	assert.ErrorContains(t, err, "failed to list connections")
}

func TestSnapshot_CustomCommandAndPolicy(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"sudo ss -tan": {Output: listing},
	})
	inv := newInvestigator(t, runner, Options{
		ListingCommand: "sudo ss -tan",
		Policy:         sockets.EphemeralPortPolicy{Threshold: 50000},
	})

	entries, err := inv.Snapshot(context.Background())
	require.NoError(t, err)

	for _, e := range entries {
		if e.Address == "45.62.209.66" {
			assert.False(t, e.Outgoing, "local port 40001 is below the raised threshold")
		}
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{Summary: sockets.Summary{Address: "1.1.1.1"}},
		{Summary: sockets.Summary{Address: "2.2.2.2", Outgoing: true}},
		{Summary: sockets.Summary{Address: ":443"}},
		{Summary: sockets.Summary{Address: "3.3.3.3"}},
		{Summary: sockets.Summary{Address: "4.4.4.4", Outgoing: true}},
		{Summary: sockets.Summary{Address: ":22"}},
	}

	SortEntries(entries)

	assert.Equal(t, []string{":443", ":22", "2.2.2.2", "4.4.4.4", "1.1.1.1", "3.3.3.3"}, addresses(entries))
}

func TestProcesses_Batch(t *testing.T) {
	pids := []int{4242, 4300}
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp": {Output: processListing},
		sockets.CmdlineSnapshotCommand(pids): {
			Output: "\n==whotalks:4242==\ncurl\x00-s\x00https://example.com\x00\n==whotalks:4300==\n",
		},
	})
	inv := newInvestigator(t, runner, Options{})

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)

	assert.Equal(t, []sockets.ProcessInfo{
		{PID: 4242, Name: "curl", Args: []string{"curl", "-s", "https://example.com"}},
		{PID: 4300, Name: "python3"},
	}, procs)
	assert.Equal(t, 1, runner.CallCount(sockets.CmdlineSnapshotCommand(pids)))
}

func TestProcesses_PerPID(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp":                   {Output: processListing},
		sockets.CmdlineCommand(4242): {Output: "curl\x00-s\x00"},
		sockets.CmdlineCommand(4300): {Err: errors.New("No such file or directory")},
	})
	inv := newInvestigator(t, runner, Options{CmdlineMode: CmdlinePerPID, MaxSessions: 2})

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)

	require.Len(t, procs, 2)
	assert.Equal(t, []string{"curl", "-s"}, procs[0].Args)
	assert.Nil(t, procs[1].Args, "a failed lookup only affects its own pid")
	assert.Equal(t, "[python3]", procs[1].CommandLine())
}

func TestProcesses_ListeningKey(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp":                  {Output: processListing},
		sockets.CmdlineCommand(812): {Output: "/usr/sbin/sshd\x00-D\x00"},
	})
	inv := newInvestigator(t, runner, Options{CmdlineMode: CmdlinePerPID})

	procs, err := inv.Processes(context.Background(), ":22")
	require.NoError(t, err)

	require.Len(t, procs, 1)
	assert.Equal(t, "/usr/sbin/sshd -D", procs[0].CommandLine())
}

func TestProcesses_ListingFailureYieldsEmpty(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp": {Err: errors.New("permission denied")},
	})
	inv := newInvestigator(t, runner, Options{})

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	assert.Empty(t, procs)
}

func TestProcesses_ListingFailureIsQuietAtWarn(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp": {Err: errors.New("ss: command not found")},
	})
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.WarnLevel)
	inv := New(runner, nil, nil, Options{}, logger)

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	assert.Empty(t, procs)
	assert.Empty(t, logs.String())
}

// shellRunner serves the process listing from memory and runs every other
// command through the local sh, the way sshd hands it to the remote shell.
type shellRunner struct {
	listing string
}

func (s shellRunner) Run(ctx context.Context, command string) (string, error) {
	if command == "ss -tanp" {
		return s.listing, nil
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", command).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s shellRunner) Close() error { return nil }

func TestProcesses_BatchSurvivesVanishedPID(t *testing.T) {
	if _, err := os.Stat("/proc/self/cmdline"); err != nil {
		t.Skip("no /proc filesystem")
	}

	self := os.Getpid()
	gone := 999999999
	listing := fmt.Sprintf(`State Recv-Q Send-Q Local Address:Port Peer Address:Port Process
ESTAB 0 0 10.0.0.5:54321 93.184.216.34:443 users:(("live",pid=%d,fd=5),("gone",pid=%d,fd=6))
`, self, gone)

	inv := New(shellRunner{listing: listing}, nil, nil, Options{}, testutil.NewTestLogger(t))

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)

	require.Len(t, procs, 2)
	assert.Equal(t, self, procs[0].PID)
	assert.NotEmpty(t, procs[0].Args, "a live pid keeps its arguments")
	assert.Equal(t, gone, procs[1].PID)
	assert.Nil(t, procs[1].Args)
}

func TestProcesses_UnknownAddress(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp": {Output: processListing},
	})
	inv := newInvestigator(t, runner, Options{})

	procs, err := inv.Processes(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Empty(t, procs)
	assert.Equal(t, []string{"ss -tanp"}, runner.Calls())
}

func TestProcesses_Canceled(t *testing.T) {
	runner := testutil.NewFakeRunner(map[string]testutil.Response{
		"ss -tanp": {Output: processListing},
	})
	inv := newInvestigator(t, runner, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Processes(ctx, "93.184.216.34")
	assert.ErrorIs(t, err, context.Canceled)
}

// concurrencyRunner records the peak number of commands in flight.
type concurrencyRunner struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	release  chan struct{}
}

func (c *concurrencyRunner) Run(_ context.Context, command string) (string, error) {
	if command == "ss -tanp" {
		return processListing, nil
	}
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()

	<-c.release

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return "x\x00", nil
}

func (c *concurrencyRunner) Close() error { return nil }

func TestProcesses_PerPIDRespectsMaxSessions(t *testing.T) {
	runner := &concurrencyRunner{release: make(chan struct{})}
	close(runner.release)

	inv := New(runner, nil, nil, Options{CmdlineMode: CmdlinePerPID, MaxSessions: 1}, testutil.NewTestLogger(t))

	procs, err := inv.Processes(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, 1, runner.peak)
}
