package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/journalsystem/portal/internal/platform/websocket"
)

// Event types pushed to participants.
const (
	EventMessageCreated = "message.created"
	EventMessageRead    = "message.read"
)

// Notifier fans message lifecycle changes out to both participants' topics.
// Delivery is best effort: failures are logged and never reach the caller.
type Notifier struct {
	pub    websocket.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewNotifier(pub websocket.EventPublisher, logger zerolog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger, now: time.Now}
}

func (n *Notifier) MessageCreated(ctx context.Context, m *Message) {
	n.fanOut(ctx, EventMessageCreated, m)
}

func (n *Notifier) MessageRead(ctx context.Context, m *Message) {
	n.fanOut(ctx, EventMessageRead, m)
}

func (n *Notifier) fanOut(ctx context.Context, eventType string, m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		n.logger.Error().Err(err).Str("message_id", m.ID.String()).Msg("failed to encode event")
		return
	}
	ts := n.now().UTC()
	for _, userID := range []uuid.UUID{m.ReceiverID, m.SenderID} {
		ev := websocket.Event{
			Type:       eventType,
			Topic:      websocket.UserTopic(userID),
			ResourceID: m.ID.String(),
			Timestamp:  ts,
			Data:       data,
		}
		if err := n.pub.Publish(ctx, ev); err != nil {
			n.logger.Warn().Err(err).Str("type", eventType).Str("topic", ev.Topic).Msg("publish failed")
		}
	}
}
