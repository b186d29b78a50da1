package poi

import "errors"

// Error taxonomy for the ingestion and matching paths. Callers classify
// failures with errors.Is against these sentinels.
var (
	// ErrProvider marks a discovery or detail-fetch failure.
	ErrProvider = errors.New("provider error")

	// ErrClassification marks a classifier failure or malformed verdict.
	// It always degrades to a negative classification upstream.
	ErrClassification = errors.New("classification error")

	// ErrStore marks a persistence failure.
	ErrStore = errors.New("store error")

	// ErrValidation marks a record or parameter rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned by lookups for absent records or jobs.
	ErrNotFound = errors.New("not found")

	// ErrNonPOI is returned by enrichment when the classifier rules the
	// place out. It is a skip, not a failure.
	ErrNonPOI = errors.New("not a point of interest")
)
