package httperr

import "errors"

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

// PreconditionError reports input that is well-formed but cannot be analyzed,
// such as a ledger query that matched no claims.
type PreconditionError struct {
	msg string
}

func (e *PreconditionError) Error() string { return e.msg }

func NewPrecondition(msg string) error { return &PreconditionError{msg: msg} }

func IsPrecondition(err error) bool {
	_, ok := errors.AsType[*PreconditionError](err)
	return ok
}
