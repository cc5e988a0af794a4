package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fotochallenge-api/internal/middleware"
	"fotochallenge-api/internal/service"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// PhotoHandler serves photo upload, rating and single-photo reads
type PhotoHandler struct {
	contest *service.ContestService
	log     *logger.Logger
}

// NewPhotoHandler creates a photo handler
func NewPhotoHandler(contest *service.ContestService, log *logger.Logger) *PhotoHandler {
	return &PhotoHandler{contest: contest, log: log}
}

// Upload handles POST /api/challenges/{challengeID}/photos
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.ActorID(r)
	if actorID == "" {
		respondError(w, r, apperrors.NewAuthorizationError("An acting user is required to upload"), h.log)
		return
	}

	var input service.UploadPhotoInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	photo, err := h.contest.UploadPhoto(r.Context(), actorID, chi.URLParam(r, "challengeID"), input)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}

	respondJSON(w, http.StatusCreated, photo)
}

// rateRequest is the body of a rating submission
type rateRequest struct {
	Value int `json:"value"`
}

// Rate handles POST /api/photos/{photoID}/rate
func (h *PhotoHandler) Rate(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionID(r)
	if session == "" {
		respondError(w, r, apperrors.NewValidationError("A session identity is required to vote", nil), h.log)
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	photoID := chi.URLParam(r, "photoID")
	if err := h.contest.RatePhoto(r.Context(), session, photoID, req.Value); err != nil {
		respondError(w, r, err, h.log)
		return
	}

	photo, err := h.contest.Store().Photo(photoID)
	if err != nil {
		respondError(w, r, apperrors.NewNotFoundError("Photo not found"), h.log)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photo":   photo,
		"average": photo.Average(),
	})
}

// Get handles GET /api/photos/{photoID}
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	photo, err := h.contest.Store().Photo(chi.URLParam(r, "photoID"))
	if err != nil {
		respondError(w, r, apperrors.NewNotFoundError("Photo not found"), h.log)
		return
	}
	respondJSON(w, http.StatusOK, photo)
}
