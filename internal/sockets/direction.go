package sockets

// DirectionPolicy decides whether a connection was initiated by the
// inspected host.
type DirectionPolicy interface {
	Outgoing(r ConnectionRecord) bool
}

// DirectionFunc adapts a plain function to DirectionPolicy.
type DirectionFunc func(r ConnectionRecord) bool

// Outgoing implements DirectionPolicy.
func (f DirectionFunc) Outgoing(r ConnectionRecord) bool {
	return f(r)
}

// DefaultEphemeralThreshold matches the lower bound of the Linux default
// ip_local_port_range.
const DefaultEphemeralThreshold = 32768

// EphemeralPortPolicy treats a connection as outgoing when its local port is
// above Threshold, i.e. in the ephemeral range the kernel picks from for
// connect(). Ports at or below the threshold are assumed to be services the
// remote side connected to.
type EphemeralPortPolicy struct {
	Threshold int
}

// Outgoing implements DirectionPolicy.
func (p EphemeralPortPolicy) Outgoing(r ConnectionRecord) bool {
	return r.LocalPort > p.Threshold
}

// DefaultDirectionPolicy returns the ephemeral-port heuristic with the Linux threshold.
func DefaultDirectionPolicy() DirectionPolicy {
	return EphemeralPortPolicy{Threshold: DefaultEphemeralThreshold}
}
