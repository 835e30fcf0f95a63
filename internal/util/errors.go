package util

import (
	"assessment_backend/internal/grading"
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrContentNotFound    = errors.New("content not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAttemptsExhausted  = errors.New("no attempts remaining")
	ErrTimeLimitExceeded  = errors.New("time limit exceeded")
	ErrInvalidTransition  = errors.New("attempt is not in a state that allows this operation")
	ErrNotAssignment      = errors.New("only assignment attempts can be graded manually")
	ErrDeadlineNotReached = errors.New("attempt deadline has not passed")
	ErrInvalidFile        = errors.New("file type or size not allowed")
	ErrInvalidContent     = errors.New("invalid content")
)

// PersistenceError wraps a storage failure. The surrounding transaction has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persist wraps err as a PersistenceError unless it is nil or already a domain error.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || isDomain(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isDomain(err error) bool {
	var ve *grading.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, d := range []error{
		ErrPermissionDenied, ErrContentNotFound, ErrAttemptNotFound, ErrAttemptsExhausted,
		ErrTimeLimitExceeded, ErrInvalidTransition, ErrNotAssignment, ErrDeadlineNotReached, ErrInvalidFile, ErrInvalidContent,
	} {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}
