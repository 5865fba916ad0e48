package pushchannel

import (
	"fmt"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
	EventError
	EventReconnectScheduled
)

// Frame is one inbound push message. Which fields are set depends on Type.
type Frame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Response  string `json:"response,omitempty"`
	UserID    string `json:"userId,omitempty"`
	From      string `json:"from,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Time converts the epoch-millisecond timestamp. A missing timestamp
// yields the zero time.
func (f Frame) Time() time.Time {
	if f.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(f.Timestamp)
}

type Event struct {
	Kind EventKind

	// EventMessage
	Frame Frame

	// EventError
	Err error

	// EventDisconnected
	CloseCode   int
	CloseReason string

	// EventReconnectScheduled
	Attempt int
	Delay   time.Duration
}
