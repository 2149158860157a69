package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// integrity_constraint_violation
const pqIntegrityClass = "23"

// IsConstraintViolation reports whether err is an integrity violation raised by
// either supported driver (unique, foreign key, not null, check).
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pqIntegrityClass
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}

	return false
}

// ConstraintName returns the violated constraint when the driver reports one.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Error()
	}
	return ""
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
