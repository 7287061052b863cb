package sockets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const ssProcessListing = `State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
LISTEN 0      511          0.0.0.0:80         0.0.0.0:*     users:(("nginx",pid=900,fd=6),("nginx",pid=901,fd=6))
ESTAB  0      0           10.0.0.5:80    198.51.100.3:60000 users:(("nginx",pid=901,fd=12))
ESTAB  0      0           10.0.0.5:80    198.51.100.3:60001 users:(("nginx",pid=902,fd=13))
ESTAB  0      0           10.0.0.5:80    198.51.100.3:60002 users:(("nginx",pid=901,fd=14))
ESTAB  0      0           10.0.0.5:48000 198.51.100.30:443
ESTAB  0      0           10.0.0.5:48001 198.51.100.3:5432  users:(("psql",pid=777,fd=3))
`

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantPID  int
		wantName string
	}{
		{"single owner", `users:(("nginx",pid=1234,fd=6))`, 1234, "nginx"},
		{"multiple owners uses first", `users:(("sshd",pid=10,fd=3),("sshd",pid=11,fd=3))`, 10, "sshd"},
		{"no pid", `users:(("ghost"))`, 0, "ghost"},
		{"empty", ``, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, name := ParseAnnotation(tt.text)
			assert.Equal(t, tt.wantPID, pid)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestParseOwners(t *testing.T) {
	owners := ParseOwners(`users:(("postgres",pid=42,fd=7),("name with space",pid=43))`)

	assert.Equal(t, []Owner{
		{Name: "postgres", PID: 42, FD: 7},
		{Name: "name with space", PID: 43},
	}, owners)
}

func TestOwnersFor_ForeignAddressDedupByPID(t *testing.T) {
	records := ParseRecords(ssProcessListing).Records

	owners := OwnersFor(records, "198.51.100.3")

	assert.Equal(t, []Owner{
		{Name: "nginx", PID: 901, FD: 12},
		{Name: "nginx", PID: 902, FD: 13},
		{Name: "psql", PID: 777, FD: 3},
	}, owners)
}

func TestOwnersFor_ExactMatchOnly(t *testing.T) {
	records := ParseRecords(ssProcessListing).Records

	owners := OwnersFor(records, "198.51.100.30")

	assert.Empty(t, owners, "annotation-less line has no known pid")
	assert.Len(t, RecordsFor(records, "198.51.100.30"), 1)
}

func TestOwnersFor_ListeningKey(t *testing.T) {
	records := ParseRecords(ssProcessListing).Records

	owners := OwnersFor(records, ":80")

	assert.Equal(t, []Owner{
		{Name: "nginx", PID: 900, FD: 6},
		{Name: "nginx", PID: 901, FD: 6},
	}, owners)
	assert.Empty(t, OwnersFor(records, ":443"))
}

func TestProcessInfo_CommandLine(t *testing.T) {
	assert.Equal(t, "/usr/bin/foo --flag", ProcessInfo{Name: "foo", Args: []string{"/usr/bin/foo", "--flag"}}.CommandLine())
	assert.Equal(t, "[kworker]", ProcessInfo{Name: "kworker"}.CommandLine())
}
