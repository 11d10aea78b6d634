// internal/status/state.go
package status

// State is the link connection state.
// Values are stable: they are published to collaborators.
type State uint16

const (
	// Disconnected: no usable connection; operations fail fast.
	Disconnected State = iota

	// Connecting: a (re)connect attempt is in progress.
	Connecting

	// Connected: requests may be exchanged.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ---- ERROR CODES ----

// CodeNone means no error.
const CodeNone uint16 = 0

// CodeGeneric is used when an error exposes no code.
const CodeGeneric uint16 = 1
