package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err is a unique index conflict on either
// Postgres (SQLSTATE 23505) or SQLite. When constraintName is provided the
// error text must also mention it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if pkgerrors.PostgresCode(err) == pkgerrors.PGUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
