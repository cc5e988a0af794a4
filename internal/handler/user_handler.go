package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fotochallenge-api/internal/domain"
	"fotochallenge-api/internal/middleware"
	"fotochallenge-api/internal/service"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// UserHandler serves the role-mock login, photographer registration and
// the admin user-management commands.
type UserHandler struct {
	contest *service.ContestService
	log     *logger.Logger
}

// NewUserHandler creates a user handler
func NewUserHandler(contest *service.ContestService, log *logger.Logger) *UserHandler {
	return &UserHandler{contest: contest, log: log}
}

type loginRequest struct {
	Role domain.UserRole `json:"role"`
}

// Login handles POST /api/auth/login, the trust-based role switcher
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	user, err := h.contest.LoginAs(r.Context(), req.Role)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type registerRequest struct {
	Username string `json:"username"`
}

// Register handles POST /api/auth/register. New photographer accounts
// start unapproved and wait for an admin.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	user, err := h.contest.RegisterPhotographer(r.Context(), req.Username)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// List handles GET /api/users (admin)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}
	if !domain.HasCapability(actor, domain.CapManageUsers) {
		respondError(w, r, apperrors.NewAuthorizationError("Only admins can list users"), h.log)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": h.contest.Store().Users(),
	})
}

// Approve handles POST /api/users/{userID}/approve (admin)
func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.contest.ApproveUser(r.Context(), actor, userID); err != nil {
		respondError(w, r, err, h.log)
		return
	}

	user, _ := h.contest.Store().User(userID)
	respondJSON(w, http.StatusOK, user)
}

type changeRoleRequest struct {
	Role domain.UserRole `json:"role"`
}

// ChangeRole handles PUT /api/users/{userID}/role (admin)
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.contest.ChangeUserRole(r.Context(), actor, userID, req.Role); err != nil {
		respondError(w, r, err, h.log)
		return
	}

	user, _ := h.contest.Store().User(userID)
	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) actor(r *http.Request) (*domain.User, error) {
	actorID := middleware.ActorID(r)
	if actorID == "" {
		return nil, apperrors.NewAuthorizationError("An acting user is required")
	}
	actor, err := h.contest.Store().User(actorID)
	if err != nil {
		return nil, apperrors.NewAuthorizationError("Acting user not found")
	}
	return actor, nil
}
