package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/journalsystem/portal/internal/platform/db"
)

var ErrUserNotFound = errors.New("user not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// The profile columns come from whichever table matches the role; the other
// side of the LEFT JOIN is all NULL.
const userSelect = `
	SELECT u.id, u.username, u.email, u.role, u.created_at,
		pp.personal_number, pp.first_name, pp.last_name, pp.date_of_birth,
		pr.first_name, pr.last_name, pr.title, pr.organization
	FROM portal_user u
	LEFT JOIN patient_profile pp ON pp.user_id = u.id
	LEFT JOIN practitioner_profile pr ON pr.user_id = u.id`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                   User
		patient             PatientProfile
		patFirst, patLast   *string
		prac                PractitionerProfile
		pracFirst, pracLast *string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt,
		&patient.PersonalNumber, &patFirst, &patLast, &patient.DateOfBirth,
		&pracFirst, &pracLast, &prac.Title, &prac.Organization)
	if err != nil {
		return nil, err
	}

	switch {
	case u.Role == RolePatient && patFirst != nil:
		patient.FirstName, patient.LastName = *patFirst, deref(patLast)
		u.Profile = &patient
	case u.Role != RolePatient && pracFirst != nil:
		prac.FirstName, prac.LastName = *pracFirst, deref(pracLast)
		u.Profile = &prac
	}
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *userRepoPG) one(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, userSelect+` WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.one(ctx, `u.id = $1`, id)
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.one(ctx, `u.username = $1`, username)
}

func (r *userRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, userSelect+` WHERE u.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepoPG) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM portal_user WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, userSelect+` WHERE u.role = $1 ORDER BY u.username LIMIT $2 OFFSET $3`,
		role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
