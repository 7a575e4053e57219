package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or SQLite. When constraintName is provided the violation must
// reference it; SQLite reports columns instead of index names, so the helper
// also accepts any column in columns.
func IsUniqueViolation(err error, constraintName string, columns ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		if constraintName == "" && len(columns) == 0 {
			return true
		}
		if constraintName != "" && strings.Contains(msg, constraintName) {
			return true
		}
		for _, col := range columns {
			if strings.Contains(msg, col) {
				return true
			}
		}
		return false
	case strings.Contains(msg, "duplicate key value"):
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}
