package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleStaff:
		return true
	}
	return false
}

// User maps to the portal_user table.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Profile   Profile   `json:"profile,omitempty"`
}

// Profile is the role-specific part of a user: *PatientProfile for patients,
// *PractitionerProfile for doctors and staff.
type Profile interface {
	isProfile()
	DisplayName() string
}

type PatientProfile struct {
	PersonalNumber *string    `db:"personal_number" json:"personal_number,omitempty"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

func (*PatientProfile) isProfile() {}

func (p *PatientProfile) DisplayName() string { return p.FirstName + " " + p.LastName }

type PractitionerProfile struct {
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	Title        *string `db:"title" json:"title,omitempty"`
	Organization *string `db:"organization" json:"organization,omitempty"`
}

func (*PractitionerProfile) isProfile() {}

func (p *PractitionerProfile) DisplayName() string {
	name := p.FirstName + " " + p.LastName
	if p.Title != nil && *p.Title != "" {
		return *p.Title + " " + name
	}
	return name
}

// DisplayName prefers the profile name and falls back to the username.
func (u *User) DisplayName() string {
	if u.Profile != nil {
		if n := strings.TrimSpace(u.Profile.DisplayName()); n != "" {
			return n
		}
	}
	return u.Username
}
