package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/journalsystem/portal/internal/domain/identity"
	"github.com/journalsystem/portal/internal/domain/messaging"
	"github.com/journalsystem/portal/internal/platform/db"
)

type portal struct {
	pool  *pgxpool.Pool
	svc   *messaging.Service
	repo  messaging.MessageRepository
	alice seededUser
	bob   seededUser
	carol seededUser
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	pool := newSchema(t)
	p := &portal{
		pool:  pool,
		alice: seedUser(t, pool, "alice", "patient", "Alice", "Andersson"),
		bob:   seedUser(t, pool, "bob", "doctor", "Bob", "Berg"),
		carol: seedUser(t, pool, "carol", "staff", "Carol", "Carlsson"),
		repo:  messaging.NewMessageRepoPG(pool),
	}
	users := identity.NewService(identity.NewUserRepoPG(pool))
	p.svc = messaging.NewService(p.repo, users.Directory(), zerolog.Nop())
	p.svc.SetTxRunner(db.NewTxRunner(pool))
	return p
}

func (p *portal) send(t *testing.T, from, to seededUser, subject, content string) *messaging.Message {
	t.Helper()
	m, err := p.svc.SendMessage(context.Background(), from.ID, &messaging.SendRequest{
		ReceiverID: to.ID, Subject: subject, Content: content,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return m
}

func TestMessaging_SendAndRead(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()

	m := p.send(t, p.alice, p.bob, "Prescription", "Please renew my prescription")

	stored, err := p.repo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.IsRead || stored.ReadAt != nil || stored.ParentID != nil {
		t.Errorf("new message must be an unread root: %+v", stored)
	}
	if !stored.SentAt.Equal(m.SentAt) {
		t.Errorf("sent_at round trip: %v vs %v", stored.SentAt, m.SentAt)
	}

	read, err := p.svc.MarkRead(ctx, m.ID, p.bob.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("expected read message, got %+v", read)
	}

	again, err := p.svc.MarkRead(ctx, m.ID, p.bob.ID)
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if !again.ReadAt.Equal(*read.ReadAt) {
		t.Errorf("read_at changed on repeat: %v -> %v", read.ReadAt, again.ReadAt)
	}

	if _, err := p.svc.MarkRead(ctx, m.ID, p.alice.ID); !errors.Is(err, messaging.ErrForbidden) {
		t.Errorf("sender mark-read: expected ErrForbidden, got %v", err)
	}
}

func TestMessaging_UnknownReceiver(t *testing.T) {
	p := newPortal(t)

	_, err := p.svc.SendMessage(context.Background(), p.alice.ID, &messaging.SendRequest{
		ReceiverID: uuid.New(), Subject: "s", Content: "c",
	})
	if !errors.Is(err, messaging.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessaging_InsertForeignKeyMapsToNotFound(t *testing.T) {
	p := newPortal(t)

	err := p.repo.Insert(context.Background(), &messaging.Message{
		SenderID: p.alice.ID, ReceiverID: uuid.New(), Subject: "s", Content: "c",
	})
	if !errors.Is(err, messaging.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from FK violation, got %v", err)
	}
}

func TestMessaging_ContentLimitEnforcedByStore(t *testing.T) {
	p := newPortal(t)

	err := p.repo.Insert(context.Background(), &messaging.Message{
		SenderID: p.alice.ID, ReceiverID: p.bob.ID, Subject: "s",
		Content: strings.Repeat("x", messaging.MaxContentLength+1),
	})
	if err == nil {
		t.Fatal("expected the column limit to reject oversized content")
	}
}

func TestMessaging_ThreadAndInbox(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()

	root := p.send(t, p.alice, p.bob, "Test results", "When will my results arrive?")
	time.Sleep(time.Millisecond)
	reply, err := p.svc.SendReply(ctx, root.ID, p.bob.ID, &messaging.ReplyRequest{Content: "Tomorrow."})
	if err != nil {
		t.Fatalf("SendReply: %v", err)
	}
	if reply.Subject != "Re: Test results" || reply.ReceiverID != p.alice.ID || *reply.ParentID != root.ID {
		t.Fatalf("unexpected reply %+v", reply)
	}
	time.Sleep(time.Millisecond)
	nested, err := p.svc.SendReply(ctx, reply.ID, p.alice.ID, &messaging.ReplyRequest{Content: "Thanks"})
	if err != nil {
		t.Fatalf("nested SendReply: %v", err)
	}
	if nested.Subject != "Re: Test results" {
		t.Errorf("prefix must not stack, got %q", nested.Subject)
	}

	for _, start := range []uuid.UUID{root.ID, reply.ID, nested.ID} {
		thread, err := p.svc.GetThread(ctx, start)
		if err != nil {
			t.Fatalf("GetThread(%s): %v", start, err)
		}
		if len(thread) != 3 || thread[0].ID != root.ID || thread[2].ID != nested.ID {
			t.Errorf("GetThread(%s) returned unexpected order", start)
		}
	}

	replies, err := p.svc.GetReplies(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetReplies: %v", err)
	}
	if len(replies) != 1 || replies[0].ID != reply.ID {
		t.Errorf("expected only the direct reply, got %d", len(replies))
	}

	inbox, err := p.svc.GetInbox(ctx, p.alice.ID)
	if err != nil {
		t.Fatalf("GetInbox: %v", err)
	}
	if len(inbox.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(inbox.Rows))
	}
	if inbox.Rows[0].MessageID != nested.ID || inbox.Rows[0].Counterpart != "To: bob" {
		t.Errorf("unexpected newest row %+v", inbox.Rows[0])
	}
	if inbox.Rows[1].Counterpart != "From: bob" || !inbox.Rows[1].Unread {
		t.Errorf("expected unread reply from bob, got %+v", inbox.Rows[1])
	}
	if inbox.UnreadCount != 1 {
		t.Errorf("expected 1 unread, got %d", inbox.UnreadCount)
	}

	if _, err := p.svc.SendReply(ctx, root.ID, p.carol.ID, &messaging.ReplyRequest{Content: "hi"}); !errors.Is(err, messaging.ErrForbidden) {
		t.Errorf("third party reply: expected ErrForbidden, got %v", err)
	}
}

func TestMessaging_ListViews(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()

	first := p.send(t, p.alice, p.bob, "one", "1")
	p.send(t, p.alice, p.bob, "two", "2")
	p.send(t, p.bob, p.alice, "three", "3")
	if _, err := p.svc.MarkRead(ctx, first.ID, p.bob.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	received, err := p.svc.ListReceived(ctx, p.bob.ID)
	if err != nil || len(received) != 2 {
		t.Fatalf("ListReceived: %d, %v", len(received), err)
	}
	sent, err := p.svc.ListSent(ctx, p.bob.ID)
	if err != nil || len(sent) != 1 {
		t.Fatalf("ListSent: %d, %v", len(sent), err)
	}
	unread, err := p.svc.ListUnread(ctx, p.bob.ID)
	if err != nil || len(unread) != 1 || unread[0].Subject != "two" {
		t.Fatalf("ListUnread: %v, %v", unread, err)
	}
}

func TestMessaging_ConcurrentMarkRead(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	m := p.send(t, p.alice, p.bob, "race", "r")

	const workers = 8
	results := make([]*messaging.Message, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.svc.MarkRead(ctx, m.ID, p.bob.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].ReadAt.Equal(*results[0].ReadAt) {
			t.Errorf("workers disagree on read_at: %v vs %v", results[i].ReadAt, results[0].ReadAt)
		}
	}
}

func TestMessaging_ReplyRollsBackWithTransaction(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	root := p.send(t, p.alice, p.bob, "tx", "t")

	runner := db.NewTxRunner(p.pool)
	boom := errors.New("abort")
	err := runner.InTx(ctx, func(ctx context.Context) error {
		if _, err := p.svc.SendReply(ctx, root.ID, p.bob.ID, &messaging.ReplyRequest{Content: "lost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected abort error, got %v", err)
	}

	replies, err := p.svc.GetReplies(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetReplies: %v", err)
	}
	if len(replies) != 0 {
		t.Errorf("reply must be rolled back, found %d", len(replies))
	}
}
