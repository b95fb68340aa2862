// Package results defines the value-level success/error model returned by
// every repository and cleanup operation. Expected failures never panic;
// they are carried as *Error inside a Result.
package results

import "context"

// Code identifies the kind of failure. The set is closed.
type Code string

const (
	CodeEntityNotFound     Code = "EntityNotFoundError"
	CodeUnexpectedDatabase Code = "UnexpectedDatabaseError"
	CodeInsertFailed       Code = "InsertOperationFailedError"
	CodeBulkInsertFailed   Code = "BulkInsertOperationFailedError"
	CodeUpdateFailed       Code = "UpdateOperationFailedError"
	CodeBulkUpdateFailed   Code = "BulkUpdateOperationFailedError"
	CodeInvalidUpdate      Code = "InvalidUpdateEntityExpressionError"
	CodeDeleteFailed       Code = "DeleteOperationFailedError"
	CodeBulkDeleteFailed   Code = "BulkDeleteOperationFailedError"
	CodeOperationCanceled  Code = "OperationCanceledError"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrEntityNotFound     = &Error{code: CodeEntityNotFound}
	ErrUnexpectedDatabase = &Error{code: CodeUnexpectedDatabase}
	ErrInsertFailed       = &Error{code: CodeInsertFailed}
	ErrBulkInsertFailed   = &Error{code: CodeBulkInsertFailed}
	ErrUpdateFailed       = &Error{code: CodeUpdateFailed}
	ErrBulkUpdateFailed   = &Error{code: CodeBulkUpdateFailed}
	ErrInvalidUpdate      = &Error{code: CodeInvalidUpdate}
	ErrDeleteFailed       = &Error{code: CodeDeleteFailed}
	ErrBulkDeleteFailed   = &Error{code: CodeBulkDeleteFailed}
	ErrOperationCanceled  = &Error{code: CodeOperationCanceled}
)

// Error is an immutable failure description.
type Error struct {
	code    Code
	message string
	cause   error
}

// NewError builds an error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap builds an error with the given code that wraps cause.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Unwrap() error   { return e.cause }

func (e *Error) Error() string {
	s := string(e.code)
	if e.message != "" {
		s += ": " + e.message
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func NotFound(message string) *Error { return NewError(CodeEntityNotFound, message) }

func Unexpected(cause error) *Error {
	return Wrap(CodeUnexpectedDatabase, cause, "unexpected database error")
}

func InsertFailed(message string) *Error     { return NewError(CodeInsertFailed, message) }
func BulkInsertFailed(message string) *Error { return NewError(CodeBulkInsertFailed, message) }
func UpdateFailed(message string) *Error     { return NewError(CodeUpdateFailed, message) }
func BulkUpdateFailed(message string) *Error { return NewError(CodeBulkUpdateFailed, message) }
func DeleteFailed(message string) *Error     { return NewError(CodeDeleteFailed, message) }
func BulkDeleteFailed(message string) *Error { return NewError(CodeBulkDeleteFailed, message) }

func InvalidUpdate(cause error) *Error {
	return Wrap(CodeInvalidUpdate, cause, "invalid update expression")
}

func Canceled(cause error) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return Wrap(CodeOperationCanceled, cause, "operation canceled")
}
