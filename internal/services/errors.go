package services

import "errors"

// Service-level errors. Callers match them with errors.Is; the wrapped
// message carries the detail.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrAlreadyResolved     = errors.New("application already resolved")
	ErrForbiddenTransition = errors.New("forbidden status transition")
	ErrPropertyNotEligible = errors.New("property not eligible")
	ErrOutOfOrderPayment   = errors.New("payment out of order")
	ErrDuplicatePayment    = errors.New("period already paid")
	ErrImmutableRecord     = errors.New("record is immutable")
	ErrNotAuthorized       = errors.New("not authorized")
)
