package analyzer

import "errors"

var (
	// ErrLimitReached means the free daily quota is spent. Nothing was
	// consumed, so nothing is refunded.
	ErrLimitReached = errors.New("daily analysis limit reached")
	// ErrInputTooShort is caller validation; it has no side effects.
	ErrInputTooShort = errors.New("input text is too short")
	// ErrParseFailure means the model reply survived the gateway checks
	// but no extraction strategy produced a JSON object.
	ErrParseFailure = errors.New("could not parse model response")
)
