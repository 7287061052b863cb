package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/whotalks/internal/remote"
	"github.com/coral-mesh/whotalks/internal/sockets"
	"github.com/coral-mesh/whotalks/internal/testutil"
)

const listingOutput = `State  Recv-Q Send-Q Local Address:Port Peer Address:Port
LISTEN 0      128    0.0.0.0:22         0.0.0.0:*
ESTAB  0      0      10.0.0.5:22        203.0.113.9:51000
ESTAB  0      0      10.0.0.5:54321     8.8.8.8:53
`

const processOutput = `State Recv-Q Send-Q Local Address:Port Peer Address:Port Process
ESTAB 0 0 10.0.0.5:54321 8.8.8.8:53 users:(("resolved",pid=611,fd=12))
`

type harness struct {
	runner *testutil.FakeRunner
	opened []remote.Options
	target remote.Target
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	home   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("WHOTALKS_CONFIG", home)

	return &harness{
		runner: testutil.NewFakeRunner(map[string]testutil.Response{
			"ss -tan":  {Output: listingOutput},
			"ss -tanp": {Output: processOutput},
			sockets.CmdlineSnapshotCommand([]int{611}): {
				Output: "\n==whotalks:611==\n/lib/systemd/systemd-resolved\x00",
			},
		}),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		home:   home,
	}
}

func (h *harness) deps() deps {
	return deps{
		open: func(_ context.Context, target remote.Target, opts remote.Options, _ zerolog.Logger) (remote.Runner, error) {
			h.target = target
			h.opened = append(h.opened, opts)
			return h.runner, nil
		},
		isTerminal: func() bool { return false },
		stderr:     h.stderr,
	}
}

func (h *harness) execute(args ...string) error {
	cmd := newRootCmd(h.deps())
	cmd.SetArgs(args)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetOut(h.stdout)
	cmd.SetErr(h.stderr)
	return cmd.Execute()
}

func TestRoot_RequiresTarget(t *testing.T) {
	h := newHarness(t)

	err := h.execute()

	assert.ErrorContains(t, err, "missing target user@host")
	assert.Empty(t, h.opened)
}

func TestRoot_RejectsInvalidTarget(t *testing.T) {
	h := newHarness(t)

	err := h.execute("web1")

	assert.ErrorIs(t, err, remote.ErrInvalidTarget)
}

func TestRoot_TooManyArgs(t *testing.T) {
	h := newHarness(t)

	assert.ErrorContains(t, h.execute("ops@web1", "8.8.8.8", "extra"), "too many arguments")
}

func TestRoot_PrintsProcessesForAddress(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1:2222", "8.8.8.8"))

	out := h.stdout.String()
	assert.Contains(t, out, "Processes behind google dns (8.8.8.8):")
	assert.Contains(t, out, "611")
	assert.Contains(t, out, "/lib/systemd/systemd-resolved")
	assert.Equal(t, remote.Target{User: "ops", Host: "web1", Port: 2222}, h.target)
	assert.True(t, h.runner.Closed())
}

func TestRoot_ProcessesAsJSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1", "8.8.8.8", "-o", "json"))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(611), rows[0]["pid"])
	assert.Equal(t, "resolved", rows[0]["name"])
}

func TestRoot_NoProcesses(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1", "198.51.100.1"))

	assert.Contains(t, h.stdout.String(), "no processes found")
}

func TestRoot_MissingTokenWarnsWithPath(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1", "8.8.8.8"))

	logs := h.stderr.String()
	assert.Contains(t, logs, "No geolocation token")
	assert.Contains(t, logs, filepath.Join(h.home, ".whotalks", "ipinfo_token"))
	assert.Contains(t, logs, "session_id=")
}

func TestRoot_NoGeoSkipsTokenWarning(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1", "8.8.8.8", "--no-geo"))

	assert.NotContains(t, h.stderr.String(), "No geolocation token")
}

func TestRoot_FlagsOverrideConfig(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("ops@web1", "8.8.8.8", "--max-sessions", "3", "--transport", "native", "--no-geo"))

	require.Len(t, h.opened, 1)
	assert.Equal(t, 3, h.opened[0].MaxSessions)
	assert.Equal(t, remote.TransportNative, h.opened[0].Transport)
}

func TestRoot_InvalidTransportFlag(t *testing.T) {
	h := newHarness(t)

	assert.ErrorContains(t, h.execute("ops@web1", "--transport", "telnet"), "unsupported transport")
}

func TestRoot_ExplicitConfigMustExist(t *testing.T) {
	h := newHarness(t)

	err := h.execute("ops@web1", "--config", filepath.Join(h.home, "missing.yaml"))

	assert.ErrorContains(t, err, "failed to load config")
}

func TestRoot_ConfigFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.home, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
remote:
  process_listing_command: sudo ss -tanp
geo:
  enabled: false
`), 0o600))
	h.runner.Set("sudo ss -tanp", testutil.Response{Output: processOutput})

	require.NoError(t, h.execute("ops@web1", "8.8.8.8", "--config", path))

	assert.Equal(t, 1, h.runner.CallCount("sudo ss -tanp"))
	assert.Zero(t, h.runner.CallCount("ss -tanp"))
}

func TestRoot_ListingFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.runner.Set("ss -tan", testutil.Response{Err: errors.New("exit status 255")})

	err := h.execute("list", "ops@web1", "--no-geo")

	assert.ErrorContains(t, err, "failed to list connections")
}

func TestList_Table(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("list", "ops@web1", "--no-geo"))

	out := h.stdout.String()
	assert.Contains(t, out, "DIR")
	assert.Contains(t, out, "listening on 22")
	assert.Contains(t, out, "google dns")
	assert.Less(t, bytes.Index(h.stdout.Bytes(), []byte(":22")), bytes.Index(h.stdout.Bytes(), []byte("8.8.8.8")))
	assert.Less(t, bytes.Index(h.stdout.Bytes(), []byte("8.8.8.8")), bytes.Index(h.stdout.Bytes(), []byte("203.0.113.9")))
}

func TestList_WhereJSON(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("list", "ops@web1", "--no-geo", "-o", "json", "--where", "outgoing"))

	var rows []entryRow
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &rows))
	assert.Equal(t, []entryRow{{Direction: "out", Address: "8.8.8.8", Label: "google dns"}}, rows)
}

func TestList_InvalidWhere(t *testing.T) {
	h := newHarness(t)

	err := h.execute("list", "ops@web1", "--where", "port ==")

	assert.ErrorContains(t, err, "invalid filter")
	assert.Empty(t, h.opened, "expressions are checked before connecting")
}

func TestList_InvalidFormat(t *testing.T) {
	h := newHarness(t)

	assert.ErrorContains(t, h.execute("list", "ops@web1", "-o", "yaml"), "unsupported format")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.execute("version"))

	assert.Contains(t, h.stdout.String(), "whotalks version")
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestSessionLogOutput(t *testing.T) {
	h := newHarness(t)

	t.Run("line mode logs to stderr", func(t *testing.T) {
		d := h.deps()
		out, closeLog := sessionLogOutput(d, false)
		defer closeLog()
		assert.Same(t, h.stderr, out)
	})

	t.Run("full screen logs to the log file", func(t *testing.T) {
		file := &closeRecorder{}
		d := h.deps()
		d.logFile = func() (io.WriteCloser, error) { return file, nil }

		out, closeLog := sessionLogOutput(d, true)
		assert.Same(t, file, out)
		closeLog()
		assert.True(t, file.closed)
	})

	t.Run("unopenable log file discards", func(t *testing.T) {
		d := h.deps()
		d.logFile = func() (io.WriteCloser, error) { return nil, errors.New("read-only home") }

		out, closeLog := sessionLogOutput(d, true)
		defer closeLog()
		assert.Equal(t, io.Discard, out)
	})

	t.Run("no log file hook discards", func(t *testing.T) {
		out, closeLog := sessionLogOutput(h.deps(), true)
		defer closeLog()
		assert.Equal(t, io.Discard, out)
	})
}

func TestOpenSession_LogsOffTheTerminal(t *testing.T) {
	h := newHarness(t)
	h.runner.Set("ss -tan", testutil.Response{Output: listingOutput + "garbage\n"})

	var logFile bytes.Buffer
	s, err := openSession(context.Background(), h.deps(), &globalFlags{}, "ops@web1", &logFile)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.investigator.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Contains(t, logFile.String(), "No geolocation token")
	assert.Contains(t, logFile.String(), "Skipped unparseable listing lines")
	assert.Empty(t, h.stderr.String())
}

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := f[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

func TestOpenSession_LabelsDefaultHostnames(t *testing.T) {
	h := newHarness(t)
	d := h.deps()
	d.resolver = fakeResolver{"github.com": {"140.82.112.3"}}

	s, err := openSession(context.Background(), d, &globalFlags{noGeo: true}, "ops@web1", h.stderr)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "github.com", s.labeler.Label("140.82.112.3"))
	assert.Equal(t, "google dns", s.labeler.Label("8.8.8.8"))
}
