package messaging

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/journalsystem/portal/internal/platform/metrics"
)

type Service struct {
	messages  MessageRepository
	users     UserDirectory
	threads   *ThreadResolver
	reads     *ReadTracker
	projector *InboxProjector
	events    EventPublisher
	tx        TxRunner
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewService(messages MessageRepository, users UserDirectory, logger zerolog.Logger) *Service {
	return &Service{
		messages:  messages,
		users:     users,
		threads:   NewThreadResolver(messages),
		reads:     NewReadTracker(messages),
		projector: NewInboxProjector(users),
		logger:    logger.With().Str("component", "messaging").Logger(),
	}
}

// SetPublisher attaches an optional event publisher.
func (s *Service) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetTxRunner makes reply composition read the parent and insert the reply
// in one transaction.
func (s *Service) SetTxRunner(tx TxRunner) {
	s.tx = tx
}

// SetMetrics attaches optional Prometheus collectors.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// -- Sending --

// SendMessage starts a new thread from senderID.
func (s *Service) SendMessage(ctx context.Context, senderID uuid.UUID, req *SendRequest) (*Message, error) {
	if req.ReceiverID == uuid.Nil {
		return nil, invalid("receiver_id", "is required")
	}
	if err := validateSubject(req.Subject); err != nil {
		return nil, err
	}
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}
	if senderID == req.ReceiverID {
		return nil, forbidden("user %s cannot message themselves", senderID)
	}
	if err := s.requireUsers(ctx, senderID, req.ReceiverID); err != nil {
		return nil, err
	}

	m := &Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Subject:    req.Subject,
		Content:    req.Content,
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.metrics.MessageSent("message")
	s.logger.Info().
		Str("message_id", m.ID.String()).
		Str("sender_id", senderID.String()).
		Str("receiver_id", m.ReceiverID.String()).
		Msg("message sent")
	if s.events != nil {
		s.events.MessageCreated(ctx, m)
	}
	return m, nil
}

// SendReply answers parentID on behalf of actorID.
func (s *Service) SendReply(ctx context.Context, parentID, actorID uuid.UUID, req *ReplyRequest) (*Message, error) {
	if err := validateContent(req.Content); err != nil {
		return nil, err
	}
	var reply *Message
	err := s.inTx(ctx, func(ctx context.Context) error {
		parent, err := s.messages.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		reply, err = ComposeReply(parent, actorID, req.Content)
		if err != nil {
			return err
		}
		return s.messages.Insert(ctx, reply)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MessageSent("reply")
	s.logger.Info().
		Str("message_id", reply.ID.String()).
		Str("parent_id", parentID.String()).
		Str("sender_id", actorID.String()).
		Msg("reply sent")
	if s.events != nil {
		s.events.MessageCreated(ctx, reply)
	}
	return reply, nil
}

// -- Read state --

// MarkRead marks messageID read for its receiver. Repeated calls are no-ops.
func (s *Service) MarkRead(ctx context.Context, messageID, actorID uuid.UUID) (*Message, error) {
	m, flipped, err := s.reads.MarkRead(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		s.logger.Debug().Str("message_id", messageID.String()).Msg("message already read")
		return m, nil
	}

	s.metrics.MessageRead()
	s.logger.Info().
		Str("message_id", messageID.String()).
		Str("actor_id", actorID.String()).
		Msg("message marked read")
	if s.events != nil {
		s.events.MessageRead(ctx, m)
	}
	return m, nil
}

// -- Views --

// GetInbox renders every message involving userID, newest first.
func (s *Service) GetInbox(ctx context.Context, userID uuid.UUID) (*Inbox, error) {
	msgs, err := s.messages.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	inbox, err := s.projector.Project(ctx, userID, msgs)
	if err != nil {
		return nil, err
	}
	s.metrics.InboxProjected(len(inbox.Rows))
	return inbox, nil
}

// GetThread returns the full conversation containing messageID, oldest first.
func (s *Service) GetThread(ctx context.Context, messageID uuid.UUID) ([]*Message, error) {
	return s.threads.Resolve(ctx, messageID)
}

// GetMessage returns a single message visible to actorID.
func (s *Service) GetMessage(ctx context.Context, messageID, actorID uuid.UUID) (*Message, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(actorID) {
		return nil, forbidden("user %s is not a participant of message %s", actorID, messageID)
	}
	return m, nil
}

// GetReplies returns the direct replies to messageID, oldest first.
func (s *Service) GetReplies(ctx context.Context, messageID uuid.UUID) ([]*Message, error) {
	if _, err := s.messages.GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	children, err := s.messages.ListByParent(ctx, messageID)
	if err != nil {
		return nil, err
	}
	SortChronological(children)
	return children, nil
}

// ListReceived returns messages addressed to userID, newest first.
func (s *Service) ListReceived(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	return s.listFiltered(ctx, userID, func(m *Message) bool { return m.ReceiverID == userID })
}

// ListSent returns messages sent by userID, newest first.
func (s *Service) ListSent(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	return s.listFiltered(ctx, userID, func(m *Message) bool { return m.SenderID == userID })
}

// ListUnread returns messages still unread by userID, newest first.
func (s *Service) ListUnread(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	return s.listFiltered(ctx, userID, func(m *Message) bool { return m.UnreadFor(userID) })
}

func (s *Service) listFiltered(ctx context.Context, userID uuid.UUID, keep func(*Message) bool) ([]*Message, error) {
	msgs, err := s.messages.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

func (s *Service) requireUsers(ctx context.Context, ids ...uuid.UUID) error {
	if s.users == nil {
		return nil
	}
	found, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return notFound("user", id)
		}
	}
	return nil
}

func validateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return invalid("subject", "is required")
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return invalid("subject", fmt.Sprintf("exceeds %d characters", MaxSubjectLength))
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return invalid("content", fmt.Sprintf("exceeds %d characters", MaxContentLength))
	}
	return nil
}
