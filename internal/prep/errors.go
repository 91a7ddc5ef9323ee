package prep

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumn  = errors.New("column not found")
	ErrColumnKind     = errors.New("column has the wrong type")
	ErrRoleConflict   = errors.New("column listed in more than one role")
	ErrNoObservations = errors.New("column has no non-null values")
	ErrNullKey        = errors.New("column has null values")
)

// ColumnError reports a caller-contract violation on one column.
type ColumnError struct {
	Op     string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: column %q: %v", e.Op, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

func colErr(op, col string, err error) error {
	return &ColumnError{Op: op, Column: col, Err: err}
}
