// Package common: errors.go defines the errors shared by every feature.
// Handlers match them with errors.Is to pick a status code and a message.
package common

import "errors"

// Not-found errors
var (
	// ErrMemberNotFound: the member does not exist in the store
	ErrMemberNotFound = errors.New("member not found")
	// ErrPetitionNotFound: the petition does not exist in the store
	ErrPetitionNotFound = errors.New("petition not found")
)

// Validation errors
var (
	// ErrUnknownAction: the action is not in the points catalog
	ErrUnknownAction = errors.New("unknown point action")
	// ErrInvalidLimit: page size is zero, negative or over the configured maximum
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidID: an identifier could not be parsed
	ErrInvalidID = errors.New("invalid identifier")
	// ErrInvalidPetition: a synced petition has no title or negative counters
	ErrInvalidPetition = errors.New("invalid petition")
)

// Admin errors
var (
	// ErrUnauthorized: missing or wrong operator token
	ErrUnauthorized = errors.New("operator token required")
)

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) || errors.Is(err, ErrPetitionNotFound)
}
