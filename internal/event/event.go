// internal/event/event.go
package event

import (
	"fmt"
	"time"

	"github.com/tamzrod/modbus-regsync/internal/register"
	"github.com/tamzrod/modbus-regsync/internal/status"
)

// Type identifies the kind of event emitted by the core.
type Type int

const (
	EventConnectionStatus Type = iota + 1
	EventRegisterChanged
	EventReadCompleted
	EventWriteConfirmed
	EventOperationLog
)

func (t Type) String() string {
	switch t {
	case EventConnectionStatus:
		return "connection-status"
	case EventRegisterChanged:
		return "register-changed"
	case EventReadCompleted:
		return "read-completed"
	case EventWriteConfirmed:
		return "write-confirmed"
	case EventOperationLog:
		return "operation-log"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Severity of an operation-log event.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Type      Type
	Timestamp time.Time
	Payload   interface{}
}

// StatusPayload is the payload for EventConnectionStatus.
// Unit 0 is the shared link.
type StatusPayload struct {
	Unit     uint8
	Snapshot status.Snapshot
}

// RegisterPayload is the payload for EventRegisterChanged.
type RegisterPayload struct {
	Unit    uint8
	Address uint16
	Value   uint16
}

// BlockPayload is the payload for EventReadCompleted and EventWriteConfirmed.
type BlockPayload struct {
	Unit    uint8
	Address uint16
	Values  []uint16
}

// LogPayload is the payload for EventOperationLog.
type LogPayload struct {
	Unit     uint8
	Message  string
	Severity Severity
}

// Emitter is the only dependency the core has on its collaborators.
type Emitter interface {
	Emit(e Event)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Logf emits an operation-log event.
func Logf(e Emitter, unit uint8, sev Severity, format string, args ...interface{}) {
	e.Emit(Event{
		Type: EventOperationLog,
		Payload: LogPayload{
			Unit:     unit,
			Message:  fmt.Sprintf(format, args...),
			Severity: sev,
		},
	})
}

// StoreNotifier adapts a register store change callback to an Emitter.
func StoreNotifier(e Emitter) register.ChangeFunc {
	return func(c register.Change) {
		e.Emit(Event{
			Type: EventRegisterChanged,
			Payload: RegisterPayload{
				Unit:    c.Unit,
				Address: c.Address,
				Value:   c.Value,
			},
		})
	}
}
