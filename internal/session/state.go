package session

// State is the lifecycle state of a Session.
type State string

const (
	// StateIdle: constructed, not started.
	StateIdle State = "Idle"

	// StateConnecting: a watch has been requested but is not producing yet.
	StateConnecting State = "Connecting"

	// StateStreaming: events from the watch are being forwarded.
	StateStreaming State = "Streaming"

	// StateBackoff: the last stream ended; waiting before reconnecting.
	StateBackoff State = "Backoff"

	// StateClosed is terminal.
	StateClosed State = "Closed"
)

// Live reports whether the state holds, or is about to hold, a connection.
func (s State) Live() bool {
	return s == StateConnecting || s == StateStreaming
}
