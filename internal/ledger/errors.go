package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownGrouping is returned for a grouping name outside the closed set.
	ErrUnknownGrouping = errors.New("unknown grouping")
	// ErrUnknownColumn is returned for a column name outside the ledger schema.
	ErrUnknownColumn = errors.New("unknown column")
)

// SchemaError reports a required column missing from a raw extract. It is
// fatal for the whole consolidation.
type SchemaError struct {
	Kind   Kind
	Column Column
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s extract: required column %q is missing", e.Kind, e.Column)
}

// ValueError reports a cell that could not be coerced to its column type.
type ValueError struct {
	Kind   Kind
	Row    int
	Column Column
	Value  any
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s extract: row %d: column %q: cannot use %v: %v", e.Kind, e.Row, e.Column, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}
