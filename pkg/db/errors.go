package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation. When constraint names are provided, the violation must be
// on one of them.
func IsUniqueViolation(err error, constraintNames ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		if len(constraintNames) == 0 {
			return true
		}
		for _, name := range constraintNames {
			if pgErr.ConstraintName == name {
				return true
			}
		}
		return false
	}

	msg := err.Error()
	if len(constraintNames) > 0 {
		for _, name := range constraintNames {
			if strings.Contains(msg, name) {
				return true
			}
		}
		return false
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
