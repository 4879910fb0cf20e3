// Package errors defines the pipeline error taxonomy. Run-level errors abort
// a run but never mutate the checkpoint; row-level errors are skipped and
// counted. Retryable reports whether an error is worth retrying within the
// same run.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAuth              = errors.New("authentication failed")
	ErrTransientQuery    = errors.New("transient query failure")
	ErrSchemaMismatch    = errors.New("row does not match dimension schema")
	ErrEnrichment        = errors.New("enrichment failed")
	ErrSinkWrite         = errors.New("sink write failed")
	ErrCheckpointCommit  = errors.New("checkpoint commit failed")
	ErrRunLocked         = errors.New("run already in progress for input")
	ErrUnknownReportType = errors.New("unknown report type")
)

// RowError describes a single row that could not be decoded or enriched.
// It carries enough context to diagnose the row without replaying the payload.
type RowError struct {
	Err      error
	RowIndex int
	Field    string
	Message  string
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s: %s", e.RowIndex, e.Field, e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.Err.Error(), e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// NewRowError wraps a sentinel with row context.
func NewRowError(sentinel error, rowIndex int, field string, format string, args ...any) *RowError {
	return &RowError{
		Err:      sentinel,
		RowIndex: rowIndex,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	}
}

// RunError wraps a sentinel with the pipeline state in which the run failed.
type RunError struct {
	Err     error
	State   string
	Message string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed in state %s: %s: %s", e.State, e.Err.Error(), e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func NewRunError(sentinel error, state string, format string, args ...any) *RunError {
	return &RunError{
		Err:     sentinel,
		State:   state,
		Message: fmt.Sprintf(format, args...),
	}
}

// Retryable reports whether the error should be retried within the current
// run. Auth exhaustion, sink writes, and checkpoint commits are fatal for the
// run and left to the next schedule.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientQuery)
}

// RowLevel reports whether the error affects a single row rather than the
// whole run.
func RowLevel(err error) bool {
	return errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrEnrichment)
}
