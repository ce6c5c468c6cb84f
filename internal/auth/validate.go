package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLen    = 254
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything past 72 bytes
	maxNameLen     = 100
)

// RegisterInput is the data a caller supplies to create an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkEmail(v *ValidationError, email string) {
	switch {
	case email == "":
		v.add("email", "is required")
	case len(email) > maxEmailLen:
		v.add("email", "is too long")
	default:
		// ParseAddress accepts "Name <addr>"; only a bare address is allowed.
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Name != "" || addr.Address != email {
			v.add("email", "is not a valid address")
		}
	}
}

func (in RegisterInput) validate() error {
	v := &ValidationError{}
	checkEmail(v, normalizeEmail(in.Email))

	checkPassword(v, "password", in.Password)

	if utf8.RuneCountInString(in.FirstName) > maxNameLen {
		v.add("firstName", "is too long")
	}
	if utf8.RuneCountInString(in.LastName) > maxNameLen {
		v.add("lastName", "is too long")
	}
	return v.orNil()
}

func checkPassword(v *ValidationError, field, pw string) {
	switch n := len(pw); {
	case n == 0:
		v.add(field, "is required")
	case n < minPasswordLen:
		v.add(field, "must be at least 8 characters")
	case n > maxPasswordLen:
		v.add(field, "must be at most 72 bytes")
	}
}

// validatePasswordChange only requires the current password to be present;
// whether it is right is the hasher's call.
func validatePasswordChange(current, next string) error {
	v := &ValidationError{}
	if current == "" {
		v.add("currentPassword", "is required")
	}
	checkPassword(v, "newPassword", next)
	return v.orNil()
}

func validateEmail(email string) error {
	v := &ValidationError{}
	checkEmail(v, normalizeEmail(email))
	return v.orNil()
}
