package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

// writeServiceError maps domain errors to HTTP responses. Unknown errors are logged and
// reported as 500 without their message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound),
		errors.Is(err, domain.ErrSubscriberNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrInvalidToken):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrCampaignLocked),
		errors.Is(err, domain.ErrAlreadySubscribed),
		errors.Is(err, domain.ErrDuplicateEmail):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeRateLimited, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "internal server error")
	}
}

// validID reports whether id is a UUID. Invalid ids are answered with 404, as an unknown id would be.
func validID(w http.ResponseWriter, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, domain.ErrCampaignNotFound.Error())
		return false
	}
	return true
}
