package resolver

import "errors"

var (
	// ErrInvalidURL marks a source URL the engine cannot fingerprint.
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrAllStrategiesDeclined means the full enabled chain ran and no
	// strategy recovered a destination. Callers surface it as "could not
	// resolve this link".
	ErrAllStrategiesDeclined = errors.New("all strategies declined")

	// ErrBudgetExhausted means the request's time budget ran out before
	// a strategy resolved the destination.
	ErrBudgetExhausted = errors.New("resolution time budget exhausted")
)
