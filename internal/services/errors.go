package services

import "errors"

// Flow outcomes surfaced to the transport layer. Each flow maps to
// exactly one of these (or to the store sentinels); handlers translate
// them to HTTP statuses and never re-map one kind as another.
var (
	// ErrInvalidCredentials is returned when the account is missing or
	// the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOTP is returned when a verification code is missing,
	// expired, or wrong. The outstanding code is not consumed.
	ErrInvalidOTP = errors.New("invalid verification code")

	// ErrForbidden is returned when the login surface does not match
	// the account's role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for malformed emails, passwords, or
	// roles outside the closed set.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream is returned when a provider exchange or mail delivery
	// fails. It is terminal for the request, never retried internally.
	ErrUpstream = errors.New("upstream failure")
)
