package models

import "errors"

var (
	// ErrDataUnavailable means no cached or fetched series exists.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientData means a series is shorter than a required minimum.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrEligibilityMismatch means a strategy is excluded by price tier.
	ErrEligibilityMismatch = errors.New("strategy not eligible for price tier")
	// ErrFetchFailure is a transient provider or network error.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrPersistenceFailure is a local storage read or write error.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrDiscoverySourceFailure means a listing source could not be read.
	ErrDiscoverySourceFailure = errors.New("discovery source failure")

	ErrNoStrategy         = errors.New("no strategy selected")
	ErrUnknownInstrument  = errors.New("unknown instrument")
	ErrNoSignal           = errors.New("no signal")
	ErrInvalidInstruments = errors.New("no valid instruments")
)
