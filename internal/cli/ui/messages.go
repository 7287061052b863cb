package ui

import (
	"github.com/coral-mesh/whotalks/internal/investigate"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// snapshotMsg carries a fresh connection listing.
type snapshotMsg struct {
	entries []investigate.Entry
	err     error
}

// processesMsg carries the processes behind one address.
type processesMsg struct {
	key       string
	processes []sockets.ProcessInfo
	err       error
}
