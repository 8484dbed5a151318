package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidEpisodeStatus is returned when an episode status is not valid.
	ErrInvalidEpisodeStatus = errors.New("invalid episode status")

	// ErrInvalidStage is returned when a pipeline stage name is not recognized.
	ErrInvalidStage = errors.New("invalid pipeline stage")
)
