package common

import (
	"fmt"
)

// IdentityError is returned when a raw account identifier cannot be turned
// into a canonical non-negative integer. It is fatal for a run, since nodes
// could no longer be keyed consistently.
type IdentityError struct {
	Value any
	Err   error
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid account identifier %v: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid account identifier %v", e.Value)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// SchemaError is returned when a field expected by the selected builder
// family is missing or has the wrong shape.
type SchemaError struct {
	Family string
	Field  string
	Row    int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: row %d: missing or malformed field %q", e.Family, e.Row, e.Field)
}

// BuilderError wraps the failure of a single network builder.
type BuilderError struct {
	Criterion string
	Err       error
}

func (e *BuilderError) Error() string {
	return fmt.Sprintf("builder %s failed: %v", e.Criterion, e.Err)
}

func (e *BuilderError) Unwrap() error {
	return e.Err
}

// EmptyInputError reports a population without records after filtering.
// It is informational: builders treat an empty population as yielding no
// signal for that side.
type EmptyInputError struct {
	Population PopulationLabel
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("population %s is empty after filtering", e.Population)
}

// StageError identifies the pipeline stage a fatal error originated from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
