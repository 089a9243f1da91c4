package model

import "errors"

var (
	// ErrInput marks unreadable or malformed input documents and invalid
	// configuration values.
	ErrInput = errors.New("input error")
	// ErrInvalidHorizon marks degenerate or non-uniform slot durations.
	ErrInvalidHorizon = errors.New("invalid horizon")
)
