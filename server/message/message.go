package message

import "time"

// Status describes the handling state of a Message. A message starts out
// as StatusOK. A handler moves it to StatusError to report a failure of
// the current handling step, with a human-readable reason as Data, or to
// StatusDone to stop any further routing.
type Status int

const (
	StatusError Status = 0
	StatusOK    Status = 1
	StatusDone  Status = 2
)

// Message is the protocol envelope. The same four logical fields are used
// across all transports; only the wire encoding differs.
type Message struct {
	// Route is the command identifier used to select a handler.
	Route string `json:"route,omitempty"`
	// Data is the payload, any JSON-serializable value.
	Data interface{} `json:"data,omitempty"`
	// Status is the tri-state handling status.
	Status Status `json:"status"`
	// Timestamp is the creation time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// New creates an ok-status message with the current timestamp.
func New(route string, data interface{}) Message {
	return Message{
		Route:     route,
		Data:      data,
		Status:    StatusOK,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewError creates an error-status message carrying reason as payload.
func NewError(route string, reason string) Message {
	msg := New(route, nil)
	msg.SetError(reason)

	return msg
}

func (m *Message) SetOK() {
	m.Status = StatusOK
}

// SetDone marks the message as fully handled. Routing code must not
// dispatch a done message any further.
func (m *Message) SetDone() {
	m.Status = StatusDone
}

func (m *Message) IsDone() bool {
	return m.Status == StatusDone
}

// SetError moves the message to error status. When the message carries no
// payload yet, reason is stashed as Data so that the receiver has a
// diagnostic to display.
func (m *Message) SetError(reason string) {
	m.Status = StatusError

	if m.Data == nil && reason != "" {
		m.Data = reason
	}
}

func (m *Message) IsError() bool {
	return m.Status == StatusError
}

// DataMap returns the payload as a map when it is one, or nil. JSON
// object payloads deserialize to map[string]interface{}.
func (m Message) DataMap() map[string]interface{} {
	data, _ := m.Data.(map[string]interface{})

	return data
}

// DataString returns the string value under key in a map payload, or "".
func (m Message) DataString(key string) string {
	value, _ := m.DataMap()[key].(string)

	return value
}

// DataInt returns the integer value under key in a map payload, or 0.
// JSON numbers deserialize as float64.
func (m Message) DataInt(key string) int {
	switch value := m.DataMap()[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	default:
		return 0
	}
}
