package directory

import (
	"database/sql"
	"time"
)

// User is a back-office person who can receive alerts: an agent, a client or
// a proprietor. Email is the resolvable contact address for the email channel.
type User struct {
	ID        int64
	FirstName string
	LastName  sql.NullString
	Email     sql.NullString
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name when the latter is present.
func (u *User) FullName() string {
	if u.LastName.Valid && u.LastName.String != "" {
		return u.FirstName + " " + u.LastName.String
	}
	return u.FirstName
}

// Group is a named audience (e.g. all agents of a branch) that alerts can
// target as a whole.
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
