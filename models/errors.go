package models

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/teller_backend/utils"
)

var (
	ErrBatchAlreadyOpen     = errors.New("employee already has an open batch")
	ErrNoOpenBatch          = errors.New("no open batch")
	ErrBatchClosed          = errors.New("batch is closed")
	ErrViewAlreadyRequested = errors.New("blotter view already requested")
	ErrViewNotRequested     = errors.New("blotter view was not requested")
	ErrViewAlreadyGranted   = errors.New("blotter view already granted")
	ErrViewRequestPending   = errors.New("blotter view request is pending")

	ErrConfirmationDeclined = errors.New("security confirmation declined")
)

// ValidationError is malformed input rejected before any aggregation runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// validateInput runs the validate tags of input and reports the first failure.
func validateInput(input any) error {
	fieldErrs := utils.ValidateStruct(input)
	if len(fieldErrs) == 0 {
		return nil
	}
	return &ValidationError{Field: fieldErrs[0].Field, Message: fieldErrs[0].Message}
}

// StateConflictError is an operation attempted in the wrong lifecycle state.
// errors.Is matches the wrapped sentinel.
type StateConflictError struct {
	Op    string
	State BatchState
	Err   error
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *StateConflictError) Unwrap() error { return e.Err }

func conflict(op string, state BatchState, err error) *StateConflictError {
	return &StateConflictError{Op: op, State: state, Err: err}
}

func NewStateConflictError(op string, state BatchState, err error) *StateConflictError {
	return conflict(op, state, err)
}

type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return utils.ErrorRecordNotFound }

// CollaboratorError is a failure of storage, messaging or another outside
// dependency. The cause is kept intact for errors.Is / errors.As.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// AsCollaboratorError wraps err unless it already belongs to the domain taxonomy.
func AsCollaboratorError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		se *StateConflictError
		ne *NotFoundError
		ce *CollaboratorError
	)
	if errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ne) || errors.As(err, &ce) || errors.Is(err, ErrConfirmationDeclined) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}
