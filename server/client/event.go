package client

import "github.com/wireline/wireline/server/message"

// EventType enumerates the uniform event contract every transport is
// translated into.
type EventType int

const (
	// EventMessage carries a deserialized inbound message.
	EventMessage EventType = iota + 1

	// EventError reports a transport error. Errors are counted; see
	// EventMaxError.
	EventError

	// EventMaxError fires once when the client's transport error count
	// reaches its threshold. The owning server evicts the client.
	EventMaxError

	// EventReconnect reports that a logical connection was re-established
	// on a new underlying socket. None of the built-in transports emit
	// it, but the contract reserves it for multiplexing transports.
	EventReconnect

	// EventDisconnect is the final event on the channel.
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventMaxError:
		return "max_error"
	case EventReconnect:
		return "reconnect"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a single entry on a client's ordered event channel.
type Event struct {
	Type    EventType
	Message message.Message
	Err     error
	Reason  string
}
