// Package sockets parses `ss` socket listings into connection records,
// aggregates them by foreign address, and correlates them with the processes
// that own them.
//
// All column-layout assumptions about `ss` output live in this package:
// ParseRecords for the socket table, ParseOwners for the users:((...))
// annotation and ParseCmdlineSnapshot for the process-table snapshot.
package sockets

import "strings"

// State is a TCP socket state as printed by ss.
type State string

const (
	StateListen      State = "LISTEN"
	StateEstablished State = "ESTABLISHED"
	StateSynSent     State = "SYN_SENT"
	StateSynRecv     State = "SYN_RECV"
	StateFinWait1    State = "FIN_WAIT1"
	StateFinWait2    State = "FIN_WAIT2"
	StateTimeWait    State = "TIME_WAIT"
	StateClose       State = "CLOSE"
	StateCloseWait   State = "CLOSE_WAIT"
	StateLastAck     State = "LAST_ACK"
	StateClosing     State = "CLOSING"
	StateUnconn      State = "UNCONN"
	StateUnknown     State = "UNKNOWN"
)

// ssStates maps the spellings used by iproute2 ss (and netstat) to states.
var ssStates = map[string]State{
	"LISTEN":      StateListen,
	"ESTAB":       StateEstablished,
	"ESTABLISHED": StateEstablished,
	"SYN-SENT":    StateSynSent,
	"SYN_SENT":    StateSynSent,
	"SYN-RECV":    StateSynRecv,
	"SYN_RECV":    StateSynRecv,
	"FIN-WAIT-1":  StateFinWait1,
	"FIN_WAIT1":   StateFinWait1,
	"FIN-WAIT-2":  StateFinWait2,
	"FIN_WAIT2":   StateFinWait2,
	"TIME-WAIT":   StateTimeWait,
	"TIME_WAIT":   StateTimeWait,
	"CLOSE":       StateClose,
	"UNCONN":      StateUnconn,
	"CLOSE-WAIT":  StateCloseWait,
	"CLOSE_WAIT":  StateCloseWait,
	"LAST-ACK":    StateLastAck,
	"LAST_ACK":    StateLastAck,
	"CLOSING":     StateClosing,
}

// ParseState normalizes an ss state column. Unrecognized values map to StateUnknown.
func ParseState(s string) State {
	if st, ok := ssStates[strings.ToUpper(s)]; ok {
		return st
	}
	return StateUnknown
}

func (s State) String() string {
	return string(s)
}
