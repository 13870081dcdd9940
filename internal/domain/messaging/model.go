package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MaxContentLength mirrors the width of the message.content column.
const MaxContentLength = 5000

// MaxSubjectLength mirrors the width of the message.subject column.
const MaxSubjectLength = 255

// ReplyPrefix is prepended to a parent's subject when composing a reply.
const ReplyPrefix = "Re: "

// Message maps to the message table.
type Message struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SenderID   uuid.UUID  `db:"sender_id" json:"sender_id"`
	ReceiverID uuid.UUID  `db:"receiver_id" json:"receiver_id"`
	Subject    string     `db:"subject" json:"subject"`
	Content    string     `db:"content" json:"content"`
	SentAt     time.Time  `db:"sent_at" json:"sent_at"`
	IsRead     bool       `db:"is_read" json:"is_read"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	ParentID   *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
}

// IsRoot reports whether the message starts a thread.
func (m *Message) IsRoot() bool { return m.ParentID == nil }

// Involves reports whether userID is the sender or the receiver.
func (m *Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the participant on the other side from userID.
func (m *Message) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadFor reports whether the message should be flagged unread for viewer.
// A message the viewer sent is never unread for them.
func (m *Message) UnreadFor(viewer uuid.UUID) bool {
	return !m.IsRead && m.ReceiverID == viewer
}

// Participant is the slice of a portal user that messaging needs.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// InboxRow is one message as rendered for one viewing user.
type InboxRow struct {
	MessageID   uuid.UUID  `json:"message_id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Subject     string     `json:"subject"`
	Counterpart string     `json:"counterpart"`
	SentAt      time.Time  `json:"sent_at"`
	Unread      bool       `json:"unread"`
}

// Inbox is the dashboard view-model for a single user.
type Inbox struct {
	UserID      uuid.UUID   `json:"user_id"`
	Rows        []*InboxRow `json:"rows"`
	UnreadCount int         `json:"unread_count"`
}

// SendRequest is the payload for starting a new thread.
type SendRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
}

// ReplyRequest is the payload for answering an existing message.
type ReplyRequest struct {
	Content string `json:"content"`
}
