package model

import "time"

// UserStatus is the activation state of an account.
type UserStatus string

const (
	StatusPending  UserStatus = "PENDING"
	StatusActive   UserStatus = "ACTIVE"
	StatusDisabled UserStatus = "DISABLED"
)

// Valid reports whether s is one of the known states.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDisabled:
		return true
	}
	return false
}

// User mirrors the `users` table. The json tags are omitted because
// handlers define their own response shapes; PasswordHash in particular
// must never leave the service.
//
// Fields:
//
//	ID           – opaque UUID assigned at registration.
//	Email        – trimmed, lower-cased, unique.
//	PasswordHash – bcrypt or argon2id PHC string.
//	FirstName    – display attribute.
//	LastName     – display attribute.
//	Status       – PENDING until activated, then ACTIVE; DISABLED by an admin.
//	ActivatedAt  – when the account left PENDING (nil while pending).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Status       UserStatus
	ActivatedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins the display attributes, skipping empty parts.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
