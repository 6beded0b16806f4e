package apperrors

import "errors"

// Code classifies an error for clients. Codes are part of the session protocol.
type Code string

const (
	CodeAuthentication Code = "authentication"
	CodeAuthorization  Code = "authorization"
	CodeValidation     Code = "validation"
	CodeState          Code = "state"
	CodeCapacity       Code = "capacity"
	CodeNotFound       Code = "not_found"
	CodePersistence    Code = "persistence"
)

const internalMessage = "internal error"

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable code
	Message string // Safe to show to the judge unless Code is CodePersistence
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Persistence wraps an unexpected storage failure.
func Persistence(message string, cause error) *Error {
	return Wrap(CodePersistence, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or CodePersistence for
// anything else.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodePersistence
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage is the text that may be relayed to a client. Storage failures and
// unclassified errors collapse into a generic message.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Code == CodePersistence {
		return internalMessage
	}
	return appErr.Message
}
