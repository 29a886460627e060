// Package shared defines the JSON messages exchanged over the calculator
// websocket. Several server messages may arrive in one websocket frame,
// separated by newlines.
package shared

import (
	"errors"
	"fmt"

	"github.com/antibyte/retrocalc/pkg/calculator"
)

// MessageType identifies a message. Values are part of the wire format.
type MessageType int

const (
	// server -> client
	MessageTypeFrame   MessageType = 0 // calculator snapshot
	MessageTypeError   MessageType = 1 // request failed, Content holds the reason
	MessageTypeLoaded  MessageType = 2 // program loaded, Name is set
	MessageTypeSession MessageType = 8 // session id after connect

	// client -> server
	MessageTypeKeepalive MessageType = 9
	MessageTypeKeyDown   MessageType = 16
	MessageTypeKeyUp     MessageType = 17
	MessageTypeLoad      MessageType = 20 // load a stored program by Name
	MessageTypeSource    MessageType = 21 // run the program text in Source
)

const (
	maxCodeLen   = 32
	maxNameLen   = 16
	maxSourceLen = 32 << 10
)

var ErrInvalidMessage = errors.New("invalid message")

// Message is the single envelope for both directions.
type Message struct {
	Type MessageType `json:"type"`

	// key events
	Code string `json:"code,omitempty"`
	Key  string `json:"key,omitempty"`

	// load / loaded
	Name   string `json:"name,omitempty"`
	Source string `json:"source,omitempty"`

	// error text
	Content string `json:"content,omitempty"`

	SessionID string               `json:"sessionId,omitempty"`
	Frame     *calculator.Snapshot `json:"frame,omitempty"`
}

// Validate checks a message received from a client.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeKeepalive:
		return nil
	case MessageTypeKeyDown, MessageTypeKeyUp:
		if m.Code == "" || len(m.Code) > maxCodeLen {
			return fmt.Errorf("%w: key code %q", ErrInvalidMessage, m.Code)
		}
		if len(m.Key) > maxCodeLen {
			return fmt.Errorf("%w: key text too long", ErrInvalidMessage)
		}
	case MessageTypeLoad:
		if m.Name == "" || len(m.Name) > maxNameLen {
			return fmt.Errorf("%w: program name %q", ErrInvalidMessage, m.Name)
		}
	case MessageTypeSource:
		if len(m.Source) > maxSourceLen {
			return fmt.Errorf("%w: source exceeds %d bytes", ErrInvalidMessage, maxSourceLen)
		}
	default:
		return fmt.Errorf("%w: type %d", ErrInvalidMessage, m.Type)
	}
	return nil
}

// NewFrame wraps a snapshot.
func NewFrame(s calculator.Snapshot) Message {
	return Message{Type: MessageTypeFrame, Frame: &s}
}

// NewError reports a failure to the client.
func NewError(format string, args ...interface{}) Message {
	return Message{Type: MessageTypeError, Content: fmt.Sprintf(format, args...)}
}
