package sockets

import (
	"net/netip"
	"strconv"
	"strings"
)

// maxMalformedSamples bounds how many unparseable lines ParseResult keeps.
const maxMalformedSamples = 5

// ConnectionRecord is one parsed line of ss output.
type ConnectionRecord struct {
	LocalAddress   string
	LocalPort      int
	ForeignAddress string
	ForeignPort    int
	State          State

	// PID is 0 when the line carries no process annotation.
	PID         int
	ProcessName string
	// Owners lists every process sharing the socket, first one matching PID.
	Owners []Owner
}

// ParseResult is the outcome of parsing one ss listing.
type ParseResult struct {
	Records []ConnectionRecord
	// Skipped counts non-blank, non-header lines that did not match the layout.
	Skipped int
	// Malformed holds up to a few of the skipped lines for diagnostics.
	Malformed []string
}

// ParseRecords parses ss -tan / ss -tanp output. The expected columns are
// state, recv-q, send-q, local address:port, peer address:port and an
// optional process annotation.
//
// Blank and header lines are ignored. Lines with fewer than five columns are
// counted in Skipped rather than returned. TIME_WAIT lines are kept; callers
// that aggregate filter them out.
func ParseRecords(output string) ParseResult {
	var result ParseResult

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isHeader(line) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			result.skip(line)
			continue
		}

		localAddr, localPort, ok := SplitHostPort(fields[3])
		if !ok {
			result.skip(line)
			continue
		}
		foreignAddr, foreignPort, ok := SplitHostPort(fields[4])
		if !ok {
			result.skip(line)
			continue
		}

		record := ConnectionRecord{
			LocalAddress:   unmapAddress(localAddr),
			LocalPort:      localPort,
			ForeignAddress: unmapAddress(foreignAddr),
			ForeignPort:    foreignPort,
			State:          ParseState(fields[0]),
		}

		if len(fields) > 5 {
			annotation := strings.Join(fields[5:], " ")
			record.PID, record.ProcessName = ParseAnnotation(annotation)
			record.Owners = ParseOwners(annotation)
			if len(record.Owners) == 0 && record.PID > 0 {
				record.Owners = []Owner{{Name: record.ProcessName, PID: record.PID}}
			}
		}

		result.Records = append(result.Records, record)
	}

	return result
}

func (r *ParseResult) skip(line string) {
	r.Skipped++
	if len(r.Malformed) < maxMalformedSamples {
		r.Malformed = append(r.Malformed, line)
	}
}

func isHeader(line string) bool {
	return strings.Contains(line, "Recv-Q") || strings.Contains(line, "Local Address")
}

// SplitHostPort splits "addr:port" at the last colon so IPv6 addresses such
// as "[::1]:22" keep their inner colons. A "*" port yields 0. ok is false when
// there is no colon or the port is neither numeric nor "*".
func SplitHostPort(s string) (host string, port int, ok bool) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", 0, false
	}

	host, portStr := s[:idx], s[idx+1:]
	if portStr == "*" {
		return host, 0, true
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 {
		return "", 0, false
	}
	return host, port, true
}

// unmapAddress rewrites an IPv4-mapped host such as "[::ffff:10.0.0.1]" to its
// IPv4 form, so IPv4 label rules and the unspecified set apply to it.
func unmapAddress(host string) string {
	if !strings.HasPrefix(host, "[") || !strings.HasSuffix(host, "]") {
		return host
	}
	addr, err := netip.ParseAddr(host[1 : len(host)-1])
	if err != nil || !addr.Is4In6() {
		return host
	}
	return addr.Unmap().String()
}
