package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetMany returns the users that exist; unknown ids are omitted.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error)
}
