package errs

import (
	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindBusinessRule Kind = "business_rule"
	KindNotFound     Kind = "not_found"
	KindPersistence  Kind = "persistence"
)

// Error is a classified failure. Anything that is not an *Error is treated as KindPersistence.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	ErrBookNotAvailable             = newError(KindBusinessRule, "book is not available")
	ErrNotBorrowerOrAlreadyReturned = newError(KindBusinessRule, "caller is not the active borrower or the book was already returned")
	ErrNoActiveLoan                 = newError(KindBusinessRule, "no active loan for book")
	ErrBookNotBorrowed              = newError(KindBusinessRule, "book is not borrowed")
	ErrBookDeleted                  = newError(KindBusinessRule, "book is deleted")
	ErrLoanAlreadyClosed            = newError(KindBusinessRule, "loan is already closed")
	ErrNoOutstandingFine            = newError(KindBusinessRule, "loan has no outstanding fine")
	ErrHasDependentRecords          = newError(KindBusinessRule, "record has dependent loan records")
	ErrAlreadyExists                = newError(KindBusinessRule, "already exists")
	ErrUnpaidFines                  = newError(KindBusinessRule, "user has unpaid fines")

	ErrBookNotFound = newError(KindNotFound, "book not found")
	ErrLoanNotFound = newError(KindNotFound, "loan not found")
	ErrUserNotFound = newError(KindNotFound, "user not found")
)

// Validation builds a KindValidation error for malformed input.
func Validation(msg string) error {
	return newError(KindValidation, msg)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindPersistence
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsBusinessRule(err error) bool { return KindOf(err) == KindBusinessRule }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsPersistence(err error) bool  { return KindOf(err) == KindPersistence }
