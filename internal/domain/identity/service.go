package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/journalsystem/portal/internal/domain/messaging"
)

type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	return s.users.GetByUsername(ctx, username)
}

func (s *Service) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	if !role.Valid() {
		return nil, 0, fmt.Errorf("invalid role: %s", role)
	}
	return s.users.ListByRole(ctx, role, limit, offset)
}

// Directory exposes the service as the messaging user directory.
func (s *Service) Directory() messaging.UserDirectory {
	return directory{users: s.users}
}

type directory struct {
	users UserRepository
}

func participant(u *User) *messaging.Participant {
	return &messaging.Participant{ID: u.ID, Username: u.Username, Role: string(u.Role)}
}

func (d directory) GetUser(ctx context.Context, id uuid.UUID) (*messaging.Participant, error) {
	u, err := d.users.GetByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, messaging.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return participant(u), nil
}

func (d directory) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*messaging.Participant, error) {
	users, err := d.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*messaging.Participant, len(users))
	for _, u := range users {
		out[u.ID] = participant(u)
	}
	return out, nil
}
