package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stage failure for callers that map failures to exit
// codes or HTTP statuses.
type ErrorKind string

const (
	// KindSchemaValidation means an agent responded but the payload failed
	// schema validation. Nothing was persisted.
	KindSchemaValidation ErrorKind = "schema_validation_failed"

	// KindPersistenceConflict means the version-conflict retry was exhausted.
	KindPersistenceConflict ErrorKind = "persistence_conflict"

	// KindPersistenceFailure means a store write or read failed.
	KindPersistenceFailure ErrorKind = "persistence_failed"

	// KindUpstreamFailure means an agent call itself failed after retries.
	KindUpstreamFailure ErrorKind = "upstream_failed"

	// KindNoRecord means the stage's input row does not exist yet.
	KindNoRecord ErrorKind = "no_record"
)

// StageError wraps a stage failure with the stage name and a machine-readable
// kind.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the error kind of a stage failure, or "" for nil and
// non-stage errors.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
