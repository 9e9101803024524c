package livechannel

import (
	"encoding/json"
	"fmt"
)

// Server-to-client events and client-to-server commands on the push channel
const (
	EventReceiveMessage      = "ReceiveMessage"
	EventReceiveStatusUpdate = "ReceiveStatusUpdate"
	CommandSendMessage       = "SendMessage"

	ackEvent = "ack"
)

// Envelope is the wire frame for everything on the channel. Events carry a
// payload in Data; command frames add a correlation ID, and the server acks
// them with an "ack" envelope echoing that ID.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the data shape for ReceiveMessage events and SendMessage
// commands. ID and CreatedAt are filled by the backend on delivery.
type MessagePayload struct {
	ID         string `json:"id,omitempty"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// StatusUpdatePayload is the data shape for ReceiveStatusUpdate events
type StatusUpdatePayload struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
}

// ChannelError is the error type for live channel failures
type ChannelError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("channel %s: %s", e.Op, e.Reason)
}

// Unwrap exposes the underlying error, if any
func (e *ChannelError) Unwrap() error { return e.Err }
