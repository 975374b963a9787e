package domain

import "errors"

var (
	// ErrInvalidInput is returned for empty or malformed operation parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientFunds is returned when escrow cannot cover a fee or a withdrawal.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized is returned when the caller lacks the owner or callback authority identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownRequest is returned when a fulfillment references a request that is not pending.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrMalformedEvent marks an event that violates the wire schema. The
	// indexer treats it as fatal.
	ErrMalformedEvent = errors.New("malformed event")
)
