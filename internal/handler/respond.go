package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fotochallenge-api/internal/middleware"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// respondJSON writes a JSON payload with the given status code
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError translates an error into the JSON error envelope. Anything
// that is not an AppError is treated as internal.
func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("Unexpected error", err)
	}

	requestID, _ := r.Context().Value(middleware.RequestIDContextKey).(string)

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(appErr).WithField("request_id", requestID).Error("Request failed")
	} else {
		log.WithError(appErr).WithField("request_id", requestID).Warn("Request rejected")
	}

	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = requestID
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	respondJSON(w, appErr.StatusCode, response)
}
