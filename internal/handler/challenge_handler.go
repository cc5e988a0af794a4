package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fotochallenge-api/internal/domain"
	"fotochallenge-api/internal/middleware"
	"fotochallenge-api/internal/service"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// ChallengeHandler serves the challenge list, detail, gallery and
// leaderboard read paths plus challenge creation.
type ChallengeHandler struct {
	contest *service.ContestService
	log     *logger.Logger
}

// NewChallengeHandler creates a challenge handler
func NewChallengeHandler(contest *service.ContestService, log *logger.Logger) *ChallengeHandler {
	return &ChallengeHandler{contest: contest, log: log}
}

// ChallengeView decorates a challenge with its derived phase and photo
// count. Phase is recomputed per request, never cached across time.
type ChallengeView struct {
	*domain.Challenge
	Phase      domain.Phase `json:"phase"`
	PhotoCount int          `json:"photoCount"`
}

// ChallengeDetailView adds the acting user's quota usage
type ChallengeDetailView struct {
	ChallengeView
	UserPhotoCount int  `json:"userPhotoCount"`
	CanUpload      bool `json:"canUpload"`
}

// List handles GET /api/challenges
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	now := h.contest.Now()
	st := h.contest.Store()

	challenges := st.Challenges()
	views := make([]ChallengeView, 0, len(challenges))
	for _, c := range challenges {
		views = append(views, ChallengeView{
			Challenge:  c,
			Phase:      c.PhaseAt(now),
			PhotoCount: len(st.PhotosByChallenge(c.ID)),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": views,
		"serverTime": now.UnixMilli(),
	})
}

// Get handles GET /api/challenges/{challengeID}
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	st := h.contest.Store()

	challenge, err := st.Challenge(challengeID)
	if err != nil {
		respondError(w, r, apperrors.NewNotFoundError("Challenge not found"), h.log)
		return
	}

	now := h.contest.Now()
	phase := challenge.PhaseAt(now)

	view := ChallengeDetailView{
		ChallengeView: ChallengeView{
			Challenge:  challenge,
			Phase:      phase,
			PhotoCount: len(st.PhotosByChallenge(challengeID)),
		},
	}

	if actorID := middleware.ActorID(r); actorID != "" {
		if actor, err := st.User(actorID); err == nil {
			view.UserPhotoCount = st.CountUserPhotos(challengeID, actorID)
			view.CanUpload = domain.CanUpload(actor, challenge, phase, view.UserPhotoCount)
		}
	}

	respondJSON(w, http.StatusOK, view)
}

// Create handles POST /api/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.ActorID(r)
	actor, err := h.contest.Store().User(actorID)
	if err != nil {
		respondError(w, r, apperrors.NewAuthorizationError("Acting user not found"), h.log)
		return
	}

	var input service.CreateChallengeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, r, apperrors.NewValidationError("Invalid request body", nil), h.log)
		return
	}

	challenge, err := h.contest.CreateChallenge(r.Context(), actor, input)
	if err != nil {
		respondError(w, r, err, h.log)
		return
	}

	respondJSON(w, http.StatusCreated, ChallengeView{
		Challenge:  challenge,
		Phase:      challenge.PhaseAt(h.contest.Now()),
		PhotoCount: 0,
	})
}

// Photos handles GET /api/challenges/{challengeID}/photos with optional
// sort (newest|oldest|rating) and search query parameters.
func (h *ChallengeHandler) Photos(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	st := h.contest.Store()

	if _, err := st.Challenge(challengeID); err != nil {
		respondError(w, r, apperrors.NewNotFoundError("Challenge not found"), h.log)
		return
	}

	photos := st.PhotosByChallenge(challengeID)

	if query := strings.TrimSpace(r.URL.Query().Get("search")); query != "" {
		q := strings.ToLower(query)
		filtered := photos[:0]
		for _, p := range photos {
			if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Author), q) {
				filtered = append(filtered, p)
			}
		}
		photos = filtered
	}

	domain.SortPhotos(photos, domain.SortOption(r.URL.Query().Get("sort")))

	// Tell the voter which photos it already rated so the affordance can
	// be disabled client-side; the rate operation re-validates anyway.
	voted := st.VotedSet(middleware.SessionID(r))
	votedIDs := make([]string, 0)
	for _, p := range photos {
		if voted.Contains(p.ID) {
			votedIDs = append(votedIDs, p.ID)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos":        photos,
		"votedPhotoIds": votedIDs,
	})
}

// Leaderboard handles GET /api/challenges/{challengeID}/leaderboard
func (h *ChallengeHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	st := h.contest.Store()

	if _, err := st.Challenge(challengeID); err != nil {
		respondError(w, r, apperrors.NewNotFoundError("Challenge not found"), h.log)
		return
	}

	photos := st.PhotosByChallenge(challengeID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": domain.Leaderboard(photos),
		"leader":  domain.CurrentLeader(photos),
	})
}
