package dispatch

import "errors"

// Validation errors returned synchronously to the caller; never retried.
var (
	ErrMissingAction             = errors.New("missing action")
	ErrInvalidAction             = errors.New("invalid action")
	ErrMissingRegistrationFields = errors.New("register requires credential and alias")
	ErrMissingTransferFields     = errors.New("transfer requires destination, positive amount and, for schedule, due_at")
	ErrUnresolvableCredential    = errors.New("no credential found: pass one directly or register an alias first")
)

// IsValidation reports whether err belongs to the request-validation family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingAction) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrMissingRegistrationFields) ||
		errors.Is(err, ErrMissingTransferFields) ||
		errors.Is(err, ErrUnresolvableCredential)
}
