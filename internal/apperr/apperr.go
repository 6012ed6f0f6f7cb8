// Package apperr holds the error kinds shared by the stores, the workflow engine
// and the HTTP layer. Every kind is a sentinel; details are attached with %w so
// callers classify with errors.Is and the text stays safe to show to a client.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrNotApproved       = errors.New("account is not approved yet")
	ErrIO                = errors.New("document generation failed")
	ErrDelivery          = errors.New("notification delivery failed")
)

var (
	ErrDuplicateEmail              = fmt.Errorf("%w: email already exists", ErrDuplicate)
	ErrDuplicateRegistrationNumber = fmt.Errorf("%w: registration number already exists", ErrDuplicate)
)

// Error несёт вид ошибки и сообщение для клиента.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newf(ErrValidation, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(ErrForbidden, format, args...)
}

func NotFound(what string) error {
	return newf(ErrNotFound, "%s not found", what)
}

func InvalidState(format string, args ...any) error {
	return newf(ErrInvalidState, format, args...)
}

// IO оборачивает сбой генерации документа, скрывая детали файловой системы.
func IO(err error) error {
	return &ioError{cause: err}
}

type ioError struct{ cause error }

func (e *ioError) Error() string { return ErrIO.Error() }

func (e *ioError) Unwrap() []error { return []error{ErrIO, e.cause} }

// Message возвращает текст, который можно отдать клиенту.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	for _, k := range []error{
		ErrDuplicateEmail, ErrDuplicateRegistrationNumber,
		ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrDuplicate,
		ErrInvalidState, ErrInvalidCredential, ErrNotApproved, ErrIO, ErrDelivery,
	} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "Server error."
}

var codes = []struct {
	kind error
	code string
}{
	{ErrDuplicateEmail, "DUPLICATE_EMAIL"},
	{ErrDuplicateRegistrationNumber, "DUPLICATE_REGISTRATION_NUMBER"},
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrInvalidCredential, "INVALID_CREDENTIALS"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrNotApproved, "NOT_APPROVED"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrDuplicate, "DUPLICATE"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrIO, "IO_ERROR"},
	{ErrDelivery, "DELIVERY_ERROR"},
}

// Code — машинный код ошибки для JSON-ответов; неизвестные ошибки дают INTERNAL.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return "INTERNAL"
}
