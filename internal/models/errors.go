package models

import "errors"

var (
	// ErrParseFailure marks a malformed price or rating string. Listings that fail
	// to parse are dropped locally and the error never reaches callers.
	ErrParseFailure = errors.New("unparseable value")

	// ErrUnavailable is returned when a collaborator times out, errors or answers non-2xx.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrProvenanceViolation is returned when a rating has no source URL.
	ErrProvenanceViolation = errors.New("rating has no source url")

	ErrInvalidRating = errors.New("rating outside (0,5]")
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidRequest is returned for empty product names and unknown regions.
	ErrInvalidRequest = errors.New("invalid request parameters")
)
