package sockets

import (
	"strconv"
	"strings"
)

// unspecifiedAddresses are foreign addresses that do not identify a peer.
var unspecifiedAddresses = map[string]bool{
	"0.0.0.0":   true,
	"*":         true,
	"127.0.0.1": true,
	"[::]":      true,
}

// Summary aggregates every connection sharing one address key.
//
// Address is either a literal IP as printed by ss or a listening key ":PORT"
// meaning "this host listens on PORT".
type Summary struct {
	Address  string `json:"address"`
	Outgoing bool   `json:"outgoing"`
}

// Listening reports whether the summary is a synthetic listening key.
func (s Summary) Listening() bool {
	return IsListeningKey(s.Address)
}

// Port returns the listening port of a listening key, or 0.
func (s Summary) Port() int {
	port, _ := ListeningPort(s.Address)
	return port
}

// ListeningKey returns the synthetic address key for a listening port.
func ListeningKey(port int) string {
	return ":" + strconv.Itoa(port)
}

// IsListeningKey reports whether key is a synthetic ":PORT" key rather than an IP.
func IsListeningKey(key string) bool {
	_, ok := ListeningPort(key)
	return ok
}

// ListeningPort extracts PORT from a ":PORT" key.
func ListeningPort(key string) (int, bool) {
	if !strings.HasPrefix(key, ":") {
		return 0, false
	}
	port, err := strconv.Atoi(key[1:])
	if err != nil || port < 0 {
		return 0, false
	}
	return port, true
}

// IsUnspecified reports whether addr is a wildcard or loopback foreign address.
func IsUnspecified(addr string) bool {
	return unspecifiedAddresses[addr]
}

// Summarize collapses records into one Summary per address key, in order of
// first appearance.
//
// TIME_WAIT records are ignored. Records whose foreign address is a wildcard
// or loopback are dropped unless they are LISTEN sockets, which become the
// listening key of their local port. Outgoing is OR-combined across records
// sharing a key.
func Summarize(records []ConnectionRecord, policy DirectionPolicy) []Summary {
	if policy == nil {
		policy = DefaultDirectionPolicy()
	}

	index := make(map[string]int)
	var summaries []Summary

	for _, r := range records {
		if r.State == StateTimeWait {
			continue
		}

		var key string
		var outgoing bool
		switch {
		case IsUnspecified(r.ForeignAddress):
			if r.State != StateListen {
				continue
			}
			key = ListeningKey(r.LocalPort)
		default:
			key = r.ForeignAddress
			outgoing = policy.Outgoing(r)
		}

		if i, ok := index[key]; ok {
			summaries[i].Outgoing = summaries[i].Outgoing || outgoing
			continue
		}
		index[key] = len(summaries)
		summaries = append(summaries, Summary{Address: key, Outgoing: outgoing})
	}

	return summaries
}

// ParseSummaries parses ss output and aggregates it in one step.
func ParseSummaries(output string, policy DirectionPolicy) []Summary {
	return Summarize(ParseRecords(output).Records, policy)
}
