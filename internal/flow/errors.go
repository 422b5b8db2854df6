package flow

import (
	"errors"
	"fmt"
)

// ErrCycle is wrapped by a BranchingError when skip resolution revisits a question.
var ErrCycle = errors.New("cycle detected while resolving skipped questions")

// NotFoundError means a question id is absent from the graph.
type NotFoundError struct {
	QuestionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("question %q not found", e.QuestionID)
}

// BranchingError means a branch function or skip predicate failed while
// resolving from QuestionID.
type BranchingError struct {
	QuestionID string
	Err        error
}

func (e *BranchingError) Error() string {
	return fmt.Sprintf("branching failed at question %q: %v", e.QuestionID, e.Err)
}

func (e *BranchingError) Unwrap() error { return e.Err }

// PersistenceError is non-fatal: the in-memory progress stays authoritative
// and the write is retried on the next auto-save tick.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for %q: %s", e.QuestionID, e.Reason)
}

// IsResolutionError reports whether err is a NotFoundError or BranchingError.
func IsResolutionError(err error) bool {
	var nf *NotFoundError
	var be *BranchingError
	return errors.As(err, &nf) || errors.As(err, &be)
}
