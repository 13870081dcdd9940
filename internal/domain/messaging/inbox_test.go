package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lab results", "Re: Lab results"},
		{"Re: Lab results", "Re: Lab results"},
		{"RE: Lab results", "Re: RE: Lab results"},
		{"Re:Lab", "Re: Re:Lab"},
		{"", "Re: "},
	}
	for _, tt := range tests {
		if got := ReplySubject(tt.in); got != tt.want {
			t.Errorf("ReplySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if twice := ReplySubject(ReplySubject(tt.in)); twice != tt.want {
			t.Errorf("ReplySubject not idempotent for %q: %q", tt.in, twice)
		}
	}
}

func TestComposeReply_Forbidden(t *testing.T) {
	parent := msgAt(uuid.New(), nil, 0)
	_, err := ComposeReply(parent, uuid.New(), "hi")
	if err == nil {
		t.Fatal("expected error for non-participant")
	}
}

func TestComposeReply_SubjectLimit(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantErr bool
	}{
		{"fits after prefix", strings.Repeat("a", MaxSubjectLength-len(ReplyPrefix)), false},
		{"overflows after prefix", strings.Repeat("a", MaxSubjectLength-len(ReplyPrefix)+1), true},
		{"already prefixed at limit", ReplyPrefix + strings.Repeat("a", MaxSubjectLength-len(ReplyPrefix)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := msgAt(uuid.New(), nil, 0)
			parent.Subject = tt.subject

			reply, err := ComposeReply(parent, parent.ReceiverID, "ok")
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n := utf8.RuneCountInString(reply.Subject); n > MaxSubjectLength {
				t.Errorf("reply subject has %d runes", n)
			}
		})
	}
}

func TestProject_LabelsAndUnread(t *testing.T) {
	alice := &Participant{ID: uuid.New(), Username: "alice"}
	bob := &Participant{ID: uuid.New(), Username: "bob"}
	p := NewInboxProjector(newMockUserDirectory(alice, bob))

	sent := &Message{ID: uuid.New(), SenderID: alice.ID, ReceiverID: bob.ID, Subject: "out", SentAt: t0}
	received := &Message{ID: uuid.New(), SenderID: bob.ID, ReceiverID: alice.ID, Subject: "in", SentAt: t0.Add(time.Minute)}

	inbox, err := p.Project(context.Background(), alice.ID, []*Message{sent, received})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(inbox.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(inbox.Rows))
	}

	in, out := inbox.Rows[0], inbox.Rows[1]
	if in.MessageID != received.ID || in.Counterpart != "From: bob" || !in.Unread {
		t.Errorf("unexpected received row: %+v", in)
	}
	if out.MessageID != sent.ID || out.Counterpart != "To: bob" || out.Unread {
		t.Errorf("own unread-by-receiver message must render read: %+v", out)
	}
	if inbox.UnreadCount != 1 {
		t.Errorf("expected unread count 1, got %d", inbox.UnreadCount)
	}
}

func TestProject_UnknownUserFallsBackToID(t *testing.T) {
	viewer := uuid.New()
	stranger := uuid.New()
	p := NewInboxProjector(newMockUserDirectory())

	m := &Message{ID: uuid.New(), SenderID: stranger, ReceiverID: viewer, SentAt: t0}
	inbox, err := p.Project(context.Background(), viewer, []*Message{m})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got := inbox.Rows[0].Counterpart; got != "From: "+stranger.String() {
		t.Errorf("expected id fallback, got %q", got)
	}
}

func TestProject_OrderAndInputUntouched(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	p := NewInboxProjector(nil)

	m1 := &Message{ID: uuid.New(), SenderID: other, ReceiverID: viewer, SentAt: t0}
	m2 := &Message{ID: uuid.New(), SenderID: other, ReceiverID: viewer, SentAt: t0.Add(2 * time.Minute)}
	m3 := &Message{ID: uuid.New(), SenderID: viewer, ReceiverID: other, SentAt: t0.Add(time.Minute)}
	input := []*Message{m1, m2, m3}

	inbox, err := p.Project(context.Background(), viewer, input)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := []uuid.UUID{m2.ID, m3.ID, m1.ID}
	for i, row := range inbox.Rows {
		if row.MessageID != want[i] {
			t.Errorf("row %d = %s, want %s", i, row.MessageID, want[i])
		}
	}
	if input[0] != m1 || input[1] != m2 || input[2] != m3 {
		t.Error("Project must not reorder the caller's slice")
	}
}

func TestProject_ReadReceivedMessage(t *testing.T) {
	viewer := uuid.New()
	at := t0.Add(time.Hour)
	m := &Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: viewer, SentAt: t0, IsRead: true, ReadAt: &at}

	inbox, err := NewInboxProjector(nil).Project(context.Background(), viewer, []*Message{m})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if inbox.Rows[0].Unread || inbox.UnreadCount != 0 {
		t.Error("read message must not be unread")
	}
}

func TestProject_Empty(t *testing.T) {
	inbox, err := NewInboxProjector(nil).Project(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if inbox.Rows == nil || len(inbox.Rows) != 0 || inbox.UnreadCount != 0 {
		t.Errorf("expected empty inbox, got %+v", inbox)
	}
}
