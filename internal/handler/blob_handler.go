package handler

import (
	"net/http"

	"fotochallenge-api/internal/blob"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// BlobHandler streams dev-stored images back to the browser
type BlobHandler struct {
	blobs *blob.MemoryStore
	log   *logger.Logger
}

// NewBlobHandler creates a blob handler over the dev blob store
func NewBlobHandler(blobs *blob.MemoryStore, log *logger.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, log: log}
}

// Get handles GET /api/blob?key=
func (h *BlobHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, r, apperrors.NewValidationError("Blob key is required", nil), h.log)
		return
	}

	data, mimeType, ok := h.blobs.Get(key)
	if !ok {
		respondError(w, r, apperrors.NewNotFoundError("Blob not found"), h.log)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
