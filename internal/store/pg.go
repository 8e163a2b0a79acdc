package store

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation  = "23505"
	pqCheckViolation   = "23514"
	pqSerializeFailure = "40001"
	pqDeadlockDetected = "40P01"
)

// mapPQError converts driver-level constraint violations into the store's
// error taxonomy. Unknown errors pass through unchanged.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqUniqueViolation:
		return &ConflictError{Field: fieldFromConstraint(pqErr.Constraint)}
	case pqCheckViolation:
		return &ValidationError{
			Field:  fieldFromConstraint(pqErr.Constraint),
			Reason: "constraint violation",
		}
	}
	return err
}

// fieldFromConstraint recovers the column name from Postgres' default
// constraint naming (table_column_key, table_column_check).
func fieldFromConstraint(constraint string) string {
	name := constraint
	name = strings.TrimSuffix(name, "_key")
	name = strings.TrimSuffix(name, "_check")
	if idx := strings.Index(name, "_"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializeFailure || pqErr.Code == pqDeadlockDetected
}

// withRetry runs fn, retrying exactly once on a transient transaction
// conflict (serialization failure or deadlock).
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}
