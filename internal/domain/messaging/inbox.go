package messaging

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// InboxProjector renders a user's messages into dashboard rows.
type InboxProjector struct {
	users UserDirectory
}

func NewInboxProjector(users UserDirectory) *InboxProjector {
	return &InboxProjector{users: users}
}

// Project builds the inbox for userID. msgs is not modified.
func (p *InboxProjector) Project(ctx context.Context, userID uuid.UUID, msgs []*Message) (*Inbox, error) {
	sorted := make([]*Message, len(msgs))
	copy(sorted, msgs)
	SortNewestFirst(sorted)

	names, err := p.lookupNames(ctx, userID, sorted)
	if err != nil {
		return nil, err
	}

	inbox := &Inbox{UserID: userID, Rows: make([]*InboxRow, 0, len(sorted))}
	for _, m := range sorted {
		row := &InboxRow{
			MessageID:   m.ID,
			ParentID:    m.ParentID,
			Subject:     m.Subject,
			Counterpart: counterpartLabel(userID, m, names),
			SentAt:      m.SentAt,
			Unread:      m.UnreadFor(userID),
		}
		inbox.Rows = append(inbox.Rows, row)
	}
	inbox.UnreadCount = CountUnread(userID, sorted)
	return inbox, nil
}

func (p *InboxProjector) lookupNames(ctx context.Context, userID uuid.UUID, msgs []*Message) (map[uuid.UUID]*Participant, error) {
	if len(msgs) == 0 || p.users == nil {
		return map[uuid.UUID]*Participant{}, nil
	}
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, m := range msgs {
		id := m.Counterpart(userID)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return p.users.GetUsers(ctx, ids)
}

func counterpartLabel(viewer uuid.UUID, m *Message, names map[uuid.UUID]*Participant) string {
	if m.SenderID == viewer {
		return "To: " + displayName(m.ReceiverID, names)
	}
	return "From: " + displayName(m.SenderID, names)
}

func displayName(id uuid.UUID, names map[uuid.UUID]*Participant) string {
	if u, ok := names[id]; ok && u.Username != "" {
		return u.Username
	}
	return id.String()
}

// ReplySubject prefixes subject with "Re: " unless it already starts with it.
func ReplySubject(subject string) string {
	if strings.HasPrefix(subject, ReplyPrefix) {
		return subject
	}
	return ReplyPrefix + subject
}

// ComposeReply builds an unsaved reply to parent sent by actorID.
func ComposeReply(parent *Message, actorID uuid.UUID, content string) (*Message, error) {
	if !parent.Involves(actorID) {
		return nil, forbidden("user %s is not a participant of message %s", actorID, parent.ID)
	}
	subject := ReplySubject(parent.Subject)
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return nil, invalid("subject", fmt.Sprintf("exceeds %d characters once prefixed", MaxSubjectLength))
	}
	parentID := parent.ID
	return &Message{
		SenderID:   actorID,
		ReceiverID: parent.Counterpart(actorID),
		Subject:    subject,
		Content:    content,
		ParentID:   &parentID,
	}, nil
}
