package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrEpisodeNotFound, ErrFeedNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., an episode with the same GUID in a feed).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// Entity-specific "not found" errors

	// ErrFeedNotFound indicates that the requested feed does not exist in the store.
	ErrFeedNotFound = fmt.Errorf("%w: feed", ErrNotFound)

	// ErrEpisodeNotFound indicates that the requested episode does not exist in the store.
	ErrEpisodeNotFound = fmt.Errorf("%w: episode", ErrNotFound)

	// ErrTranscriptNotFound indicates that the requested transcript does not exist in the store.
	ErrTranscriptNotFound = fmt.Errorf("%w: transcript", ErrNotFound)

	// ErrSummaryNotFound indicates that the requested summary does not exist in the store.
	ErrSummaryNotFound = fmt.Errorf("%w: summary", ErrNotFound)

	// ErrTemplateNotFound indicates that the requested prompt template does not exist in the store.
	ErrTemplateNotFound = fmt.Errorf("%w: template", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrEpisodeExists indicates that an episode with the given feed and GUID
	// already exists.
	ErrEpisodeExists = fmt.Errorf("%w: episode", ErrDuplicate)

	// ErrFeedExists indicates that a feed with the given URL already exists.
	ErrFeedExists = fmt.Errorf("%w: feed", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
// This includes the generic ErrDuplicate and all entity-specific duplicate errors.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
