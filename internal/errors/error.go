package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryValidation  Category = "validation"
	CategoryApplication Category = "application"
	CategoryTransport   Category = "transport"
	CategoryConfig      Category = "config"
	CategoryInference   Category = "inference"
	CategoryStorage     Category = "storage"
)

// Error is a categorized error carrying a user-facing message.
type Error struct {
	// Code is a unique error identifier (e.g., "V001").
	Code string

	// Category decides how the error is surfaced.
	Category Category

	// Message is the text shown to the user, verbatim.
	Message string

	// Detail is a longer explanation for logs.
	Detail string

	// Suggestion is a hint on how to recover.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		return msg + ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithMessage replaces the user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithSuggestion adds a recovery hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error with the given code.
// An *Error anywhere in the chain is returned as is.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// CategoryOf returns the category of the first *Error in err's chain.
func CategoryOf(err error) (Category, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}

// IsCategory reports whether err carries an *Error of the given category.
func IsCategory(err error, c Category) bool {
	got, ok := CategoryOf(err)
	return ok && got == c
}

// UserMessage returns the user-facing message of the first *Error in err's
// chain, or fallback when there is none.
func UserMessage(err error, fallback string) string {
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
