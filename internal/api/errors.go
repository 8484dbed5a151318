// Package api contains the HTTP handlers and the error translation between
// service errors and response codes.
package api

import (
	"errors"
	"net/http"

	"github.com/Zhong-Ze-Wei/podcast/internal/api/shared"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
	"github.com/Zhong-Ze-Wei/podcast/internal/service"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
)

// Stable error codes returned in response bodies. Clients branch on these,
// not on messages.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidState      = "INVALID_STATE"
	CodeAlreadyInProgress = "ALREADY_IN_PROGRESS"
	CodeAlreadyComplete   = "ALREADY_COMPLETE"
	CodeTaskInProgress    = "TASK_IN_PROGRESS"
	CodeNotCancellable    = "NOT_CANCELLABLE"
	CodeQueueFull         = "QUEUE_FULL"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL"
)

// WriteServiceError translates a service-layer error into an HTTP response.
// Guard refusal categories keep their three-way distinction: a stage that is
// already running conflicts (409), while wrong-state and already-complete
// requests are plain bad requests with distinct codes.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if guardErr, ok := service.AsGuardError(err); ok {
		switch guardErr.Reason {
		case domain.ReasonAlreadyInProgress:
			shared.RespondWithError(w, r, http.StatusConflict, CodeAlreadyInProgress, guardErr.Error())
		case domain.ReasonAlreadyComplete:
			shared.RespondWithError(w, r, http.StatusBadRequest, CodeAlreadyComplete, guardErr.Error())
		default:
			shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidState, guardErr.Error())
		}
		return
	}

	switch {
	case errors.Is(err, service.ErrTaskAlreadyRunning):
		shared.RespondWithError(w, r, http.StatusConflict, CodeTaskInProgress, err.Error())
	case errors.Is(err, task.ErrTaskNotFound), store.IsNotFoundError(err):
		shared.RespondWithError(w, r, http.StatusNotFound, CodeNotFound, err.Error())
	case store.IsDuplicateError(err):
		shared.RespondWithError(w, r, http.StatusConflict, CodeAlreadyExists, err.Error())
	case errors.Is(err, store.ErrInvalidEntity):
		shared.RespondWithError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, task.ErrNotCancellable):
		shared.RespondWithError(w, r, http.StatusConflict, CodeNotCancellable, err.Error())
	case errors.Is(err, task.ErrQueueFull):
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, CodeQueueFull, err.Error())
	case errors.Is(err, task.ErrEngineStopped):
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, CodeInternal,
			"An internal error occurred", err)
	}
}
