package messaging

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ThreadResolver reconstructs reply trees from parent links.
type ThreadResolver struct {
	repo MessageRepository
}

func NewThreadResolver(repo MessageRepository) *ThreadResolver {
	return &ThreadResolver{repo: repo}
}

// Root follows parent links from messageID up to the message without a parent.
func (r *ThreadResolver) Root(ctx context.Context, messageID uuid.UUID) (*Message, error) {
	m, err := r.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	visited := map[uuid.UUID]bool{m.ID: true}
	for m.ParentID != nil {
		parent, err := r.repo.GetByID(ctx, *m.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent of %s: %w", m.ID, err)
		}
		if visited[parent.ID] {
			return nil, fmt.Errorf("parent cycle detected at message %s", parent.ID)
		}
		visited[parent.ID] = true
		m = parent
	}
	return m, nil
}

// Resolve returns every message in the thread containing messageID, oldest first.
func (r *ThreadResolver) Resolve(ctx context.Context, messageID uuid.UUID) ([]*Message, error) {
	root, err := r.Root(ctx, messageID)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{root.ID: true}
	thread := []*Message{root}
	queue := []uuid.UUID{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := r.repo.ListByParent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list replies of %s: %w", id, err)
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			thread = append(thread, c)
			queue = append(queue, c.ID)
		}
	}

	SortChronological(thread)
	return thread, nil
}

// SortChronological orders by sent_at ascending, then id ascending.
func SortChronological(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return chronoLess(msgs[i], msgs[j])
	})
}

// SortNewestFirst orders by sent_at descending, then id descending.
func SortNewestFirst(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return chronoLess(msgs[j], msgs[i])
	})
}

func chronoLess(a, b *Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
