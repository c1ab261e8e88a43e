package errors

import "errors"

var (
	// ErrMissingSignature indicates the request carried no signature header
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrMissingSecret indicates no signing secret is configured
	ErrMissingSecret = errors.New("webhook signing secret is not configured")

	// ErrInvalidSignature indicates the signature did not match the raw body
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrAccountNotFound indicates the account row does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrStaleUpdate indicates a newer provider event already updated the same fields
	ErrStaleUpdate = errors.New("account update superseded by a newer event")

	// ErrLookupNotFound indicates the provider has no object with the requested id
	ErrLookupNotFound = errors.New("provider object not found")

	// ErrAccountUnresolved indicates no account could be associated with an event
	ErrAccountUnresolved = errors.New("event could not be associated with an account")
)
