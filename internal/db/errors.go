package db

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the service reacts to.
const (
	codeUniqueViolation = "23505"
	codeForeignKey      = "23503"
	codeCheckViolation  = "23514"
	codeInvalidTextRepr = "22P02"
)

func pqCode(err error) (pq.ErrorCode, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, true
	}
	return "", false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraint is non-empty the violated constraint name must match too.
func IsUniqueViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// IsForeignKeyViolation reports a reference to a row that does not exist.
func IsForeignKeyViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeForeignKey
}

// IsCheckViolation reports a CHECK constraint failure. When constraint is
// non-empty the violated constraint name must match too.
func IsCheckViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeCheckViolation {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// IsInvalidText reports malformed input such as a non-uuid string in a uuid column.
func IsInvalidText(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeInvalidTextRepr
}
