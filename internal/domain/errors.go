package domain

import (
	"errors"
)

// Error taxonomy. Recoverable conditions (stale cache, missing optional
// sensor) are handled locally with safe fallbacks and never surface through
// these. Unrecoverable conditions stop the run without touching the durable
// charging state.
var (
	// ErrInsufficientHistory: the regression cannot be fit. There is no safe
	// default prediction, so the run's charge decision is aborted.
	ErrInsufficientHistory = errors.New("insufficient history to fit power-need forecast")

	// ErrConfiguration: invalid configuration detected before any device
	// interaction.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataFetch: an upstream source was unavailable or returned a
	// malformed payload. Aggregation proceeds with partial data where
	// possible.
	ErrDataFetch = errors.New("data fetch error")
)
