package service

import (
	"errors"
	"fmt"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// Common sentinel errors for the service layer.
var (
	// ErrTaskAlreadyRunning indicates a pending or processing task of the
	// same type already exists for the subject.
	ErrTaskAlreadyRunning = errors.New("a task of this type is already running for this subject")
)

// GuardError reports a refused stage transition request. The Reason
// categorizes the refusal so callers can distinguish "already in progress"
// from "already complete" from a plain wrong-state request.
type GuardError struct {
	Stage  domain.Stage
	Status domain.EpisodeStatus
	Reason domain.GuardReason
}

// Error implements the error interface for GuardError.
func (e *GuardError) Error() string {
	return fmt.Sprintf("cannot start %s: episode status is %q (%s)", e.Stage, e.Status, e.Reason)
}

// AsGuardError extracts a GuardError from an error chain, if present.
func AsGuardError(err error) (*GuardError, bool) {
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return guardErr, true
	}
	return nil, false
}
