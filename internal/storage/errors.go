package storage

import "errors"

var (
	// ErrRequestNotFound is returned when a request record is not found
	ErrRequestNotFound = errors.New("request record not found")

	// ErrInvalidTransition is returned when a write would move a terminal record
	ErrInvalidTransition = errors.New("request record is already terminal")

	// ErrDuplicateRequest is returned when a record id already exists
	ErrDuplicateRequest = errors.New("request record already exists")

	// ErrRoutingOverrideNotFound is returned when a routing override is not found
	ErrRoutingOverrideNotFound = errors.New("routing override not found")
)
