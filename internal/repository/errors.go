// Package repository defines error types that are reused across the
// credential repositories. These sentinel values let the auth service
// distinguish "nothing there" from "somebody else got there first" without
// looking at driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a user with the same normalized email
// already exists. The unique index is the final arbiter, so two racing
// registrations still produce a single account.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a conditional update matched no row because
// the state changed underneath it: a token already consumed or revoked, or
// a user no longer PENDING. Callers translate it into the domain error for
// the operation they were attempting.
var ErrConflict = errors.New("conflict")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
