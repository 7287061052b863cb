package sockets

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	pidPattern   = regexp.MustCompile(`pid=(\d+)`)
	namePattern  = regexp.MustCompile(`"([^"]*)"`)
	ownerPattern = regexp.MustCompile(`\("([^"]*)",pid=(\d+)(?:,fd=(\d+))?\)`)
)

// Owner is one process holding a socket, from a ("name",pid=N,fd=M) tuple.
type Owner struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
	FD   int    `json:"fd,omitempty"`
}

// ProcessInfo describes a process found behind an address.
type ProcessInfo struct {
	PID  int      `json:"pid" header:"PID"`
	Name string   `json:"name" header:"NAME"`
	Args []string `json:"args"`
}

// CommandLine joins the argument list, falling back to "[name]" when the
// arguments are unknown (kernel threads, exited processes, lookup failures).
func (p ProcessInfo) CommandLine() string {
	if len(p.Args) == 0 {
		return "[" + p.Name + "]"
	}
	return strings.Join(p.Args, " ")
}

// ParseAnnotation extracts the first pid= value and the first quoted name
// from an ss users:((...)) annotation. pid is 0 when none is present.
func ParseAnnotation(text string) (pid int, name string) {
	if m := pidPattern.FindStringSubmatch(text); m != nil {
		pid, _ = strconv.Atoi(m[1])
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	return pid, name
}

// ParseOwners returns every ("name",pid=N,fd=M) tuple of an annotation, in order.
func ParseOwners(text string) []Owner {
	var owners []Owner
	for _, m := range ownerPattern.FindAllStringSubmatch(text, -1) {
		pid, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		owner := Owner{Name: m[1], PID: pid}
		if m[3] != "" {
			owner.FD, _ = strconv.Atoi(m[3])
		}
		owners = append(owners, owner)
	}
	return owners
}

// RecordsFor returns the records behind an address key. An IP key matches
// records whose foreign address is exactly the key; a listening key ":P"
// matches LISTEN records bound to local port P.
func RecordsFor(records []ConnectionRecord, key string) []ConnectionRecord {
	var matched []ConnectionRecord

	if port, ok := ListeningPort(key); ok {
		for _, r := range records {
			if r.State == StateListen && r.LocalPort == port {
				matched = append(matched, r)
			}
		}
		return matched
	}

	for _, r := range records {
		if r.ForeignAddress == key {
			matched = append(matched, r)
		}
	}
	return matched
}

// OwnersFor returns the distinct processes behind an address key, in order of
// first appearance. Owners with an unknown pid are left out.
func OwnersFor(records []ConnectionRecord, key string) []Owner {
	seen := make(map[int]bool)
	var owners []Owner

	for _, r := range RecordsFor(records, key) {
		for _, o := range r.Owners {
			if o.PID == 0 || seen[o.PID] {
				continue
			}
			seen[o.PID] = true
			owners = append(owners, o)
		}
	}

	return owners
}
