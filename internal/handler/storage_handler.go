package handler

import (
	"encoding/json"
	"net/http"

	"fotochallenge-api/internal/service"
	"fotochallenge-api/pkg/logger"
)

// StorageHandler exposes the local-storage recovery action
type StorageHandler struct {
	contest *service.ContestService
	log     *logger.Logger
}

// NewStorageHandler creates a storage handler
func NewStorageHandler(contest *service.ContestService, log *logger.Logger) *StorageHandler {
	return &StorageHandler{contest: contest, log: log}
}

type clearRequest struct {
	IncludeRemote bool `json:"includeRemote"`
}

// Clear handles POST /api/storage/clear, the explicit wipe a user
// triggers after the local cache reported quota exhaustion. An optional
// body flag extends the wipe to the remote mirror.
func (h *StorageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body means local only

	if err := h.contest.ClearLocalData(r.Context(), req.IncludeRemote); err != nil {
		respondError(w, r, err, h.log)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Local data cleared",
	})
}
