package models

import "time"

// Message is a single chat message between two portal users.
// Only IsRead changes after creation, and only from false to true.
type Message struct {
	ID          int64     `json:"id" db:"id"`
	SenderID    int64     `json:"senderId" db:"sender_id"`
	ReceiverID  *int64    `json:"receiverId" db:"receiver_id"`
	Content     string    `json:"content" db:"content"`
	IsFromAdmin bool      `json:"isFromAdmin" db:"is_from_admin"`
	IsRead      bool      `json:"isRead" db:"is_read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// OtherParty returns the participant that is not owner, or nil when the
// message has no addressee.
func (m *Message) OtherParty(owner int64) *int64 {
	if m.SenderID == owner {
		return m.ReceiverID
	}
	id := m.SenderID
	return &id
}

// AddressedTo reports whether userID is the receiver of the message.
func (m *Message) AddressedTo(userID int64) bool {
	return m.ReceiverID != nil && *m.ReceiverID == userID
}

// Involves reports whether userID sent or received the message.
func (m *Message) Involves(userID int64) bool {
	return m.SenderID == userID || m.AddressedTo(userID)
}

// Conversation is the inbox view of every message exchanged with one counterpart.
// It is derived on demand and never stored.
type Conversation struct {
	OtherUser   *User    `json:"user"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}
