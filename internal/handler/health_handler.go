package handler

import (
	"net/http"
	"time"

	"fotochallenge-api/internal/container"
	"fotochallenge-api/internal/persistence"
)

// HealthHandler reports service liveness and storage health
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a health handler
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{container: c}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":      "ok",
		"environment": h.container.Config.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	if size, err := h.container.LocalCache.SizeBytes(ctx); err == nil {
		status["local_cache_bytes"] = size
	}

	if h.container.HasRedis() {
		if err := h.container.RedisClient.Health(ctx); err != nil {
			status["remote_store"] = "unreachable"
		} else {
			status["remote_store"] = "ok"

			keys := make([]string, len(persistence.Collections))
			for i, collection := range persistence.Collections {
				keys[i] = h.container.RedisClient.KeyBuilder.KeyCollection(collection)
			}
			if n, err := h.container.RedisClient.Exists(ctx, keys...); err == nil {
				status["remote_snapshots"] = n
			}
		}
	} else {
		status["remote_store"] = "not_configured"
	}

	respondJSON(w, http.StatusOK, status)
}
