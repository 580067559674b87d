package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError reports a uniqueness violation, optionally bound to a request field.
type ConflictError struct {
	Message string
	Field   string
}

func NewConflictError(msg string, field ...string) error {
	err := &ConflictError{Message: msg}
	if len(field) > 0 {
		err.Field = field[0]
	}
	return err
}

func (err ConflictError) Error() string {
	return err.Message
}

// PreconditionError reports an operation attempted from a state that does not allow it.
type PreconditionError struct {
	Message string
}

func NewPreconditionError(msg string) error {
	return &PreconditionError{Message: msg}
}

func (err PreconditionError) Error() string {
	return err.Message
}

// StorageError reports a failure of the file store. Its detail is never sent to clients.
type StorageError struct {
	Err error
}

func NewStorageError(err error, msg string) error {
	return &StorageError{Err: errors.Wrap(err, msg)}
}

func (err StorageError) Error() string {
	return err.Err.Error()
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
