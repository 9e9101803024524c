package models

import "time"

// Message holds the structure for a chat message as returned by the room
// endpoints and the live channel
type Message struct {
	ID         string    `json:"id,omitempty"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InConversation reports whether the message belongs to the conversation
// between a and b, regardless of direction
func (m Message) InConversation(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
