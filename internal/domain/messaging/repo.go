package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRepository is the message store. Implementations return an error
// wrapping ErrNotFound for unknown ids.
type MessageRepository interface {
	// Insert assigns ID, SentAt (when zero) and clears the read state.
	Insert(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListByParticipant returns messages where userID is sender or receiver.
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*Message, error)
	// ListByParent returns direct children only.
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Message, error)
	// MarkRead flips is_read for a message addressed to receiverID. It is a
	// conditional update: an already-read message is returned unchanged.
	MarkRead(ctx context.Context, id, receiverID uuid.UUID, at time.Time) (*Message, error)
}

// UserDirectory resolves portal users. It is backed by the identity domain.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*Participant, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Participant, error)
}

// EventPublisher receives notifications about message lifecycle changes.
type EventPublisher interface {
	MessageCreated(ctx context.Context, m *Message)
	MessageRead(ctx context.Context, m *Message)
}

// TxRunner groups store calls into one unit of work.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
