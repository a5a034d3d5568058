package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesViolation(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint violation, such
// as the non-negative stock guard on product_variants.
func IsCheckViolation(err error, constraintName string) bool {
	return matchesViolation(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

func matchesViolation(err error, sqlState, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != sqlState {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
