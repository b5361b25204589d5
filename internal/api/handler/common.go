package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/validation"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &domain.APIError{
		Code:    status,
		Message: message,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var validationErrs validation.ValidationErrors
	var staleErr *domain.StaleEntityError
	switch {
	case errors.As(err, &validationErrs):
		respondValidationErrors(w, validationErrs)
	case errors.As(err, &staleErr):
		respondJSON(w, http.StatusConflict, &domain.APIError{
			Code:    http.StatusConflict,
			Message: "stale entity",
			Details: staleErr.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrSyncInProgress):
		respondError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, domain.ErrSubmitFailed):
		respondError(w, http.StatusBadGateway, "submit failed")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// respondValidationErrors writes a JSON response for multiple validation errors.
func respondValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"errors": errs,
	})
}
