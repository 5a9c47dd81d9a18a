package store

import (
	"strings"

	"github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/bornholm/trainyard/internal/failure"
)

const (
	sqliteConstraint           = 19
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsUniqueViolation reports whether the error was raised by a UNIQUE or
// PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return true
	case sqliteConstraint:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	default:
		return false
	}
}

// NotFound translates gorm.ErrRecordNotFound into failure.ErrNotFound.
func NotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failure.NotFound(format, args...)
	}

	return errors.WithStack(err)
}
