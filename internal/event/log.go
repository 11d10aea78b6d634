// internal/event/log.go
package event

import "github.com/rs/zerolog"

// LogHandler mirrors events into a zerolog logger.
// Register changes are debug-level; operation logs keep their severity.
func LogHandler(log zerolog.Logger) Handler {
	return func(e Event) {
		switch p := e.Payload.(type) {
		case LogPayload:
			var ev *zerolog.Event
			switch p.Severity {
			case SeverityError:
				ev = log.Error()
			case SeverityWarn:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev.Uint8("unit", p.Unit).Msg(p.Message)

		case StatusPayload:
			ev := log.Info().
				Uint8("unit", p.Unit).
				Stringer("state", p.Snapshot.State)
			if p.Snapshot.LastError != "" {
				ev = ev.Str("last_error", p.Snapshot.LastError)
			}
			if p.Snapshot.NextRetry > 0 {
				ev = ev.Dur("next_retry", p.Snapshot.NextRetry)
			}
			ev.Msg("connection status")

		case RegisterPayload:
			log.Debug().
				Uint8("unit", p.Unit).
				Uint16("addr", p.Address).
				Uint16("value", p.Value).
				Msg("register changed")

		case BlockPayload:
			log.Debug().
				Stringer("event", e.Type).
				Uint8("unit", p.Unit).
				Uint16("addr", p.Address).
				Interface("values", p.Values).
				Msg("block")
		}
	}
}
