package domain

import "errors"

// Failure taxonomy shared by all engines. Handlers map these to HTTP status
// codes with errors.Is; everything else is treated as an internal error.
var (
	// ErrInvalidParameter marks an unknown method/distribution name or a
	// numeric parameter outside its valid range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData marks an empty or too-short return sample.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMissingInput marks a request that omits an input the chosen
	// method requires (e.g. Monte Carlo without asset returns).
	ErrMissingInput = errors.New("missing input")
)
