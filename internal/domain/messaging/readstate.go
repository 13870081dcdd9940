package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReadTracker owns the Unread -> Read transition.
type ReadTracker struct {
	repo MessageRepository
	now  func() time.Time
}

func NewReadTracker(repo MessageRepository) *ReadTracker {
	return &ReadTracker{repo: repo, now: time.Now}
}

// MarkRead marks messageID read on behalf of actorID. The returned bool is
// true only when this call performed the transition.
func (t *ReadTracker) MarkRead(ctx context.Context, messageID, actorID uuid.UUID) (*Message, bool, error) {
	m, err := t.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if m.ReceiverID != actorID {
		return nil, false, forbidden("only the receiver may mark message %s read", messageID)
	}
	if m.IsRead {
		return m, false, nil
	}

	// timestamptz stores microseconds.
	at := t.now().UTC().Truncate(time.Microsecond)
	updated, err := t.repo.MarkRead(ctx, messageID, actorID, at)
	if err != nil {
		return nil, false, err
	}
	// A concurrent caller may have won the conditional update; the stored
	// read_at is then theirs.
	flipped := updated.ReadAt != nil && updated.ReadAt.Equal(at)
	return updated, flipped, nil
}

// CountUnread counts messages addressed to userID that are still unread.
func CountUnread(userID uuid.UUID, msgs []*Message) int {
	n := 0
	for _, m := range msgs {
		if m.UnreadFor(userID) {
			n++
		}
	}
	return n
}
