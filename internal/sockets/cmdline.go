package sockets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// snapshotMarker prefixes each process in a batched cmdline snapshot.
const snapshotMarker = "==whotalks:"

var snapshotPattern = regexp.MustCompile(`(?:^|\n)` + snapshotMarker + `(\d+)==\n`)

// ParseCmdline splits a /proc/PID/cmdline blob on NUL bytes, dropping empty fields.
func ParseCmdline(raw []byte) []string {
	var args []string
	for _, field := range strings.Split(string(raw), "\x00") {
		if field != "" {
			args = append(args, field)
		}
	}
	return args
}

// CmdlineCommand returns the remote command printing one process's cmdline.
func CmdlineCommand(pid int) string {
	return fmt.Sprintf("cat /proc/%d/cmdline", pid)
}

// CmdlineSnapshotCommand returns one remote shell command that prints, for
// every pid, a marker line followed by the raw cmdline bytes. With no pids it
// snapshots the whole process table.
//
// The loop runs under sh whatever the login shell is, and always exits 0 so a
// process that vanished since the listing only loses its own arguments.
func CmdlineSnapshotCommand(pids []int) string {
	list := "/proc/[0-9]*"
	if len(pids) > 0 {
		paths := make([]string, len(pids))
		for i, pid := range pids {
			paths[i] = "/proc/" + strconv.Itoa(pid)
		}
		list = strings.Join(paths, " ")
	}

	return fmt.Sprintf(
		`sh -c 'for p in %s; do printf "\n%s%%s==\n" "${p#/proc/}"; cat "$p/cmdline" 2>/dev/null; done; exit 0'`,
		list, snapshotMarker,
	)
}

// ParseCmdlineSnapshot parses CmdlineSnapshotCommand output into argument
// lists keyed by pid. Pids whose cmdline was empty or unreadable map to nil.
func ParseCmdlineSnapshot(output string) map[int][]string {
	result := make(map[int][]string)

	matches := snapshotPattern.FindAllStringSubmatchIndex(output, -1)
	for i, m := range matches {
		pid, err := strconv.Atoi(output[m[2]:m[3]])
		if err != nil {
			continue
		}

		end := len(output)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		result[pid] = ParseCmdline([]byte(output[m[1]:end]))
	}

	return result
}
