package acm

import "errors"

// Errors returned by the estimation pipeline. They are always wrapped with
// context, so callers should match them with errors.Is.
var (
	// ErrInvalidPanel is returned when a yield panel breaks the input
	// contract: unsorted dates, maturities not equal to 1..N, or NaN values.
	ErrInvalidPanel = errors.New("invalid yield panel")

	// ErrDimensionMismatch is returned when two inputs that must agree in
	// shape do not (e.g. a monthly panel with different maturities).
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInsufficientHistory is returned when there are fewer observations
	// than a regression needs to be identified.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNumericalDegeneracy is returned when a factorization fails outright.
	// Singular designs are otherwise solved with the minimum-norm solution.
	ErrNumericalDegeneracy = errors.New("numerical degeneracy")

	ErrUnknownMaturity = errors.New("unknown maturity")
	ErrDateNotFound    = errors.New("date not found")
)
