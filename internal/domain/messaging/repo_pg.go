package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/journalsystem/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const msgCols = `id, sender_id, receiver_id, subject, content, sent_at, is_read, read_at, parent_id`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Subject, &m.Content,
		&m.SentAt, &m.IsRead, &m.ReadAt, &m.ParentID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepoPG) collect(rows pgx.Rows) ([]*Message, error) {
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *messageRepoPG) Insert(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	m.IsRead = false
	m.ReadAt = nil

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO message (id, sender_id, receiver_id, subject, content, sent_at, is_read, parent_id)
		VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7)`,
		m.ID, m.SenderID, m.ReceiverID, m.Subject, m.Content, m.SentAt, m.ParentID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: foreign_key_violation on sender, receiver or parent.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("insert message: %s: %w", pgErr.ConstraintName, ErrNotFound)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.conn(ctx).QueryRow(ctx, `SELECT `+msgCols+` FROM message WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("message", id)
	}
	return m, err
}

func (r *messageRepoPG) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+msgCols+` FROM message
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY sent_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", userID, err)
	}
	return r.collect(rows)
}

func (r *messageRepoPG) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+msgCols+` FROM message
		WHERE parent_id = $1
		ORDER BY sent_at, id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list replies of %s: %w", parentID, err)
	}
	return r.collect(rows)
}

// MarkRead only touches a row that is still unread, so racing receivers
// cannot overwrite each other's read_at. The losing caller re-reads the row.
func (r *messageRepoPG) MarkRead(ctx context.Context, id, receiverID uuid.UUID, at time.Time) (*Message, error) {
	m, err := scanMessage(r.conn(ctx).QueryRow(ctx, `
		UPDATE message SET is_read = TRUE, read_at = $3
		WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE
		RETURNING `+msgCols, id, receiverID, at))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark message %s read: %w", id, err)
	}

	m, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ReceiverID != receiverID {
		return nil, forbidden("only the receiver may mark message %s read", id)
	}
	return m, nil
}
