// Package link tracks the state of the uplink used to report readings and
// decides when to (re)connect.
package link

import "fmt"

// State of the link as seen by the machine.
type State uint8

const (
	Idle State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is the value reported by a Source when polled.
type Status uint8

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusWrongCredentials
	StatusNotFound
	StatusConnectFailed
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusWrongCredentials:
		return "wrong credentials"
	case StatusNotFound:
		return "not found"
	case StatusConnectFailed:
		return "connect failed"
	case StatusConnected:
		return "connected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	return s <= StatusConnected
}

// Code classifies a link error.
type Code uint8

const (
	CodeNone Code = iota
	CodeConnectFailed
	CodeNotFound
	CodeCredentials
	CodeTimeout
	CodeSendFailed
	CodeUnknown
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeConnectFailed:
		return "connect failed"
	case CodeNotFound:
		return "not found"
	case CodeCredentials:
		return "bad credentials"
	case CodeTimeout:
		return "timeout"
	case CodeSendFailed:
		return "send failed"
	default:
		return "unknown"
	}
}

// EventKind identifies an asynchronous transport notification.
type EventKind uint8

const (
	EventConnected EventKind = iota + 1
	EventError
	EventDisconnected
	EventSent
	EventReceived
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	case EventSent:
		return "sent"
	case EventReceived:
		return "received"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is a transport notification. Attempt identifies the connect attempt
// the event belongs to; zero matches any attempt.
type Event struct {
	Kind    EventKind
	Attempt uint64
	Code    Code
	// Reply is the peer's status code for EventReceived.
	Reply int
	Data  []byte
}

// Connector starts and aborts connection attempts. Connect must not block;
// completion is reported later as an Event or through a Source.
type Connector interface {
	Connect(attempt uint64) error
	Disconnect() error
}

// Source reports the current link status when polled.
type Source interface {
	Status() Status
}
