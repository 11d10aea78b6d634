// internal/sink/mqtt/message.go
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/modbus-regsync/internal/event"
)

// RegisterMessage is published for every register change.
type RegisterMessage struct {
	Unit      uint8  `json:"unit"`
	Address   uint16 `json:"address"`
	Value     uint16 `json:"value"`
	Timestamp string `json:"timestamp"`
}

// BlockMessage is published for read-completed and write-confirmed events.
type BlockMessage struct {
	Unit      uint8    `json:"unit"`
	Kind      string   `json:"kind"`
	Address   uint16   `json:"address"`
	Values    []uint16 `json:"values"`
	Timestamp string   `json:"timestamp"`
}

// StatusMessage is the retained connection status.
type StatusMessage struct {
	Unit      uint8  `json:"unit"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	ErrorCode uint16 `json:"error_code,omitempty"`
	NextRetry string `json:"next_retry,omitempty"`
	Timestamp string `json:"timestamp"`
}

// LogMessage mirrors an operation-log event.
type LogMessage struct {
	Unit      uint8  `json:"unit"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// WriteRequest is the JSON accepted on <root>/unit/<id>/write.
// Either Address+Value (single register) or Values (whole writable span).
type WriteRequest struct {
	Address *int     `json:"address,omitempty"`
	Value   *uint16  `json:"value,omitempty"`
	Values  []uint16 `json:"values,omitempty"`
}

// message is one outgoing publication.
type message struct {
	topic    string
	payload  []byte
	retained bool
}

// ---- topics ----

func unitTopic(root string, unit uint8, leaf ...string) string {
	parts := append([]string{root, "unit", strconv.Itoa(int(unit))}, leaf...)
	return strings.Join(parts, "/")
}

func statusTopic(root string, unit uint8) string {
	if unit == 0 {
		return root + "/status"
	}
	return unitTopic(root, unit, "status")
}

// parseWriteTopic extracts the unit id from <root>/unit/<id>/write.
func parseWriteTopic(root, topic string) (uint8, bool) {
	rest := strings.TrimPrefix(topic, root+"/unit/")
	if rest == topic || !strings.HasSuffix(rest, "/write") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(rest, "/write"), 10, 8)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint8(id), true
}

// buildMessage maps an event onto its topic and payload.
// ok is false for events the sink does not publish.
func buildMessage(root string, e event.Event) (message, bool) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.UTC().Format(time.RFC3339)

	var (
		m   message
		v   interface{}
		err error
	)

	switch p := e.Payload.(type) {
	case event.RegisterPayload:
		m.topic = unitTopic(root, p.Unit, "register", strconv.Itoa(int(p.Address)))
		m.retained = true
		v = RegisterMessage{Unit: p.Unit, Address: p.Address, Value: p.Value, Timestamp: stamp}

	case event.BlockPayload:
		kind := "read"
		if e.Type == event.EventWriteConfirmed {
			kind = "write"
		}
		m.topic = unitTopic(root, p.Unit, kind)
		v = BlockMessage{Unit: p.Unit, Kind: kind, Address: p.Address, Values: p.Values, Timestamp: stamp}

	case event.StatusPayload:
		m.topic = statusTopic(root, p.Unit)
		m.retained = true
		sm := StatusMessage{
			Unit:      p.Unit,
			State:     p.Snapshot.State.String(),
			Error:     p.Snapshot.LastError,
			ErrorCode: p.Snapshot.LastErrorCode,
			Timestamp: stamp,
		}
		if p.Snapshot.NextRetry > 0 {
			sm.NextRetry = p.Snapshot.NextRetry.String()
		}
		v = sm

	case event.LogPayload:
		m.topic = unitTopic(root, p.Unit, "log")
		v = LogMessage{Unit: p.Unit, Severity: p.Severity.String(), Message: p.Message, Timestamp: stamp}

	default:
		return message{}, false
	}

	if m.payload, err = json.Marshal(v); err != nil {
		return message{}, false
	}
	return m, true
}

// decodeWrite validates a write request payload.
func decodeWrite(payload []byte) (WriteRequest, error) {
	var req WriteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("mqtt sink: bad write payload: %w", err)
	}
	single := req.Address != nil && req.Value != nil
	if single == (len(req.Values) > 0) {
		return req, fmt.Errorf("mqtt sink: write needs either address+value or values")
	}
	return req, nil
}
