package strategy

import "errors"

var (
	// ErrParseFailed marks a document the strategy recognized but could
	// not parse far enough to extract a destination.
	ErrParseFailed = errors.New("failed to parse gate page")

	// ErrChallengeUnsolved marks a challenge page that stayed challenged
	// after the retry loop.
	ErrChallengeUnsolved = errors.New("challenge page not solved")

	// ErrBudgetExceeded marks an attempt cut short by the request's
	// remaining time budget. The orchestrator aborts the chain on it.
	ErrBudgetExceeded = errors.New("time budget exceeded")
)
