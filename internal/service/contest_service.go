package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fotochallenge-api/internal/blob"
	"fotochallenge-api/internal/domain"
	"fotochallenge-api/internal/persistence"
	"fotochallenge-api/internal/service/critique"
	"fotochallenge-api/internal/store"
	apperrors "fotochallenge-api/pkg/errors"
	"fotochallenge-api/pkg/logger"
)

// Clock supplies the current time. Injected so phase-dependent logic is
// testable at fixed instants; production wiring passes time.Now.
type Clock func() time.Time

// FallbackThumbnailURL is used when a challenge is created without one
const FallbackThumbnailURL = "https://images.unsplash.com/photo-1516035069371-29a1b244cc32?auto=format&fit=crop&q=80&w=1000"

const critiqueTimeout = 60 * time.Second

// CreateChallengeInput carries the fields of a new challenge. Durations
// are whole days; voting starts exactly when the upload window ends.
type CreateChallengeInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ThumbnailURL     string `json:"thumbnailUrl"`
	UploadDays       int    `json:"uploadDays"`
	VotingDays       int    `json:"votingDays"`
	MaxPhotosPerUser int    `json:"maxPhotosPerUser"`
}

// UploadPhotoInput carries a photo submission. ImageData is an optional
// base64 data URI; when absent the photo is created with an empty URL
// (file selection is guarded at the presentation layer).
type UploadPhotoInput struct {
	Title        string `json:"title"`
	ImageData    string `json:"imageData,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	WantCritique bool   `json:"wantCritique"`
}

// ContestService implements the mutating operations of the contest:
// challenge creation, photo upload, rating, AI feedback attach and the
// user-management commands. Every operation validates against the phase
// engine and the guard before touching the store, then writes through the
// persistence gateway.
type ContestService struct {
	store    *store.Store
	gateway  *persistence.Gateway
	blobs    blob.Store
	critique *critique.Service
	clock    Clock
	log      *logger.Logger
}

// NewContestService wires the contest operations
func NewContestService(st *store.Store, gw *persistence.Gateway, blobs blob.Store, critiqueSvc *critique.Service, clock Clock, log *logger.Logger) *ContestService {
	return &ContestService{
		store:    st,
		gateway:  gw,
		blobs:    blobs,
		critique: critiqueSvc,
		clock:    clock,
		log:      log,
	}
}

// Store exposes the domain store for read paths
func (s *ContestService) Store() *store.Store {
	return s.store
}

// Now returns the service clock's current time
func (s *ContestService) Now() time.Time {
	return s.clock()
}

// Bootstrap loads the persisted collections into the store, seeding the
// default challenge and accounts when nothing has been persisted yet.
func (s *ContestService) Bootstrap(ctx context.Context) error {
	var (
		photos     []*domain.Photo
		challenges []*domain.Challenge
		users      []*domain.User
		votes      map[string][]string
	)

	if err := s.gateway.Load(ctx, persistence.CollectionPhotos, &photos); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	if err := s.gateway.Load(ctx, persistence.CollectionChallenges, &challenges); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	if err := s.gateway.Load(ctx, persistence.CollectionUsers, &users); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	if err := s.gateway.Load(ctx, persistence.CollectionVotes, &votes); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}

	seeded := false
	if len(challenges) == 0 {
		challenges = []*domain.Challenge{store.SeedChallenge(s.clock())}
		seeded = true
		s.log.Info("Seeded default challenge")
	}
	if len(users) == 0 {
		users = store.SeedUsers()
		seeded = true
		s.log.Info("Seeded default users")
	}

	s.store.Replace(photos, challenges, users, votes)

	if seeded {
		if err := s.persistChallenges(ctx); err != nil {
			return err
		}
		if err := s.persistUsers(ctx); err != nil {
			return err
		}
	}

	s.log.WithFields(map[string]interface{}{
		"photos":     len(photos),
		"challenges": len(challenges),
		"users":      len(users),
	}).Info("Domain store loaded")
	return nil
}

// CreateChallenge creates a new contest. Deadlines are additive: the
// upload window opens now, voting starts the moment upload closes.
func (s *ContestService) CreateChallenge(ctx context.Context, actor *domain.User, input CreateChallengeInput) (*domain.Challenge, error) {
	if !domain.HasCapability(actor, domain.CapCreateChallenge) {
		return nil, apperrors.NewAuthorizationError("Only admins and editors can create challenges")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("Challenge title is required", nil)
	}
	if input.UploadDays < 1 || input.VotingDays < 1 {
		return nil, apperrors.NewValidationError("Upload and voting windows must be at least one day", nil)
	}
	if input.MaxPhotosPerUser < 1 {
		return nil, apperrors.NewValidationError("Photo quota must be at least 1", nil)
	}

	thumbnail := strings.TrimSpace(input.ThumbnailURL)
	if thumbnail == "" {
		thumbnail = FallbackThumbnailURL
	}

	nowMs := s.clock().UnixMilli()
	dayMs := 24 * time.Hour.Milliseconds()
	uploadDeadline := nowMs + int64(input.UploadDays)*dayMs

	challenge := &domain.Challenge{
		ID:               store.NewID(),
		Title:            input.Title,
		Description:      input.Description,
		ThumbnailURL:     thumbnail,
		UploadDeadline:   uploadDeadline,
		VotingDeadline:   uploadDeadline + int64(input.VotingDays)*dayMs,
		CreatorID:        actor.ID,
		MaxPhotosPerUser: input.MaxPhotosPerUser,
	}

	s.store.AddChallenge(challenge)
	s.log.WithFields(map[string]interface{}{
		"challenge_id": challenge.ID,
		"creator_id":   actor.ID,
	}).Info("Challenge created")

	return challenge, s.persistChallenges(ctx)
}

// UploadPhoto validates the upload against the guard, stores the image in
// the blob store, records the photo and kicks off the asynchronous AI
// critique. The returned photo carries the ID a caller needs to observe
// the feedback attach later.
func (s *ContestService) UploadPhoto(ctx context.Context, actorID, challengeID string, input UploadPhotoInput) (*domain.Photo, error) {
	actor, err := s.store.User(actorID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("Acting user not found")
	}
	challenge, err := s.store.Challenge(challengeID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("Challenge not found")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("Photo title is required", nil)
	}

	phase := challenge.PhaseAt(s.clock())
	existing := s.store.CountUserPhotos(challengeID, actorID)
	if !domain.CanUpload(actor, challenge, phase, existing) {
		if phase != domain.PhaseUpload {
			return nil, apperrors.NewPhaseClosedError("The upload window for this challenge has closed")
		}
		if existing >= challenge.MaxPhotosPerUser {
			return nil, apperrors.NewConflictError("Photo quota for this challenge reached")
		}
		return nil, apperrors.NewAuthorizationError("You are not allowed to upload to this challenge")
	}

	// An upload without image data still produces a photo with an empty
	// URL; a failed blob upload aborts, no photo record without a
	// resolvable reference on that path.
	var url string
	if input.ImageData != "" {
		url, err = s.blobs.Put(ctx, input.ImageData, input.FileName)
		if err != nil {
			if errors.Is(err, blob.ErrInvalidImageData) {
				return nil, apperrors.NewValidationError("Invalid image data", nil)
			}
			return nil, apperrors.NewExternalError("Failed to store the photo image", err)
		}
	}

	photo := &domain.Photo{
		ID:          store.NewID(),
		ChallengeID: challengeID,
		UserID:      actorID,
		URL:         url,
		Title:       input.Title,
		Author:      actor.Username,
		Ratings:     []int{},
		CreatedAt:   s.clock().UnixMilli(),
	}

	if err := s.store.InsertPhoto(photo, challenge.MaxPhotosPerUser); err != nil {
		return nil, apperrors.NewConflictError("Photo quota for this challenge reached")
	}

	s.log.WithFields(map[string]interface{}{
		"photo_id":     photo.ID,
		"challenge_id": challengeID,
		"user_id":      actorID,
	}).Info("Photo uploaded")

	if input.WantCritique {
		imageRef := url
		if imageRef == "" {
			imageRef = input.ImageData
		}
		if imageRef != "" {
			go s.attachCritiqueAsync(photo.ID, imageRef, photo.Title)
		}
	}

	return photo, s.persistPhotos(ctx)
}

// attachCritiqueAsync runs the critique call off the upload path and
// merges the result once it resolves. A failing critique degrades to the
// placeholder text and never invalidates the photo.
func (s *ContestService) attachCritiqueAsync(photoID, imageRef, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), critiqueTimeout)
	defer cancel()

	feedback := s.critique.Critique(ctx, imageRef, title)
	if err := s.AttachFeedback(ctx, photoID, feedback); err != nil {
		s.log.WithError(err).WithField("photo_id", photoID).Warn("Failed to persist AI feedback")
	}
}

// AttachFeedback merges critique text into an existing photo. Used by the
// two-phase upload protocol: create returns the ID synchronously, feedback
// arrives whenever the critique call settles.
func (s *ContestService) AttachFeedback(ctx context.Context, photoID, feedback string) error {
	s.store.AttachFeedback(photoID, feedback)
	return s.persistPhotos(ctx)
}

// RatePhoto appends a 1..5 rating to a photo on behalf of a session
// identity. Phase and the voted set are re-validated here, not just at
// the UI affordance, to close the race where the phase flips mid
// interaction. Duplicates leave all state untouched.
func (s *ContestService) RatePhoto(ctx context.Context, session, photoID string, value int) error {
	if !domain.ValidRating(value) {
		return apperrors.NewValidationError("Rating must be between 1 and 5", nil)
	}
	if session == "" {
		return apperrors.NewValidationError("A session identity is required to vote", nil)
	}

	photo, err := s.store.Photo(photoID)
	if err != nil {
		return apperrors.NewNotFoundError("Photo not found")
	}
	challenge, err := s.store.Challenge(photo.ChallengeID)
	if err != nil {
		return apperrors.NewNotFoundError("Challenge not found")
	}

	if challenge.PhaseAt(s.clock()) != domain.PhaseVoting {
		return apperrors.NewPhaseClosedError("Voting is not open for this challenge")
	}

	if err := s.store.RecordVote(session, photoID, value); err != nil {
		if errors.Is(err, store.ErrAlreadyVoted) {
			return apperrors.NewConflictError("You have already rated this photo")
		}
		return apperrors.NewNotFoundError("Photo not found")
	}

	s.log.WithFields(map[string]interface{}{
		"photo_id": photoID,
		"value":    value,
	}).Info("Vote recorded")

	if err := s.persistPhotos(ctx); err != nil {
		return err
	}
	return s.persistVotes(ctx)
}

// LoginAs resolves (or lazily creates) an account carrying the requested
// role. This is the trust-based role switcher, not an authentication
// mechanism; freshly minted PHOTOGRAPHER mocks start unapproved.
func (s *ContestService) LoginAs(ctx context.Context, role domain.UserRole) (*domain.User, error) {
	if !domain.ValidRole(role) {
		return nil, apperrors.NewValidationError("Unknown role", map[string]interface{}{"role": role})
	}

	if user, ok := s.store.UserByRole(role); ok {
		return user, nil
	}

	user := &domain.User{
		ID:         store.NewID(),
		Username:   string(role) + "_Mock",
		Role:       role,
		IsApproved: role != domain.RolePhotographer,
	}
	s.store.AddUser(user)
	s.log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    role,
	}).Info("Mock user created")

	return user, s.persistUsers(ctx)
}

// RegisterPhotographer creates an unapproved photographer account waiting
// for admin approval.
func (s *ContestService) RegisterPhotographer(ctx context.Context, username string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.NewValidationError("Username is required", nil)
	}

	user := &domain.User{
		ID:         store.NewID(),
		Username:   strings.TrimSpace(username),
		Role:       domain.RolePhotographer,
		IsApproved: false,
	}
	s.store.AddUser(user)
	s.log.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Photographer registered")

	return user, s.persistUsers(ctx)
}

// ApproveUser lifts the approval gate on an account. Admin only.
func (s *ContestService) ApproveUser(ctx context.Context, actor *domain.User, userID string) error {
	if !domain.HasCapability(actor, domain.CapManageUsers) {
		return apperrors.NewAuthorizationError("Only admins can approve users")
	}
	if err := s.store.ApproveUser(userID); err != nil {
		return apperrors.NewNotFoundError("User not found")
	}
	s.log.WithField("user_id", userID).Info("User approved")
	return s.persistUsers(ctx)
}

// ChangeUserRole reassigns an account's role. Admin only.
func (s *ContestService) ChangeUserRole(ctx context.Context, actor *domain.User, userID string, role domain.UserRole) error {
	if !domain.HasCapability(actor, domain.CapManageUsers) {
		return apperrors.NewAuthorizationError("Only admins can change roles")
	}
	if !domain.ValidRole(role) {
		return apperrors.NewValidationError("Unknown role", map[string]interface{}{"role": role})
	}
	if err := s.store.ChangeUserRole(userID, role); err != nil {
		return apperrors.NewNotFoundError("User not found")
	}
	s.log.WithFields(map[string]interface{}{
		"user_id": userID,
		"role":    role,
	}).Info("User role changed")
	return s.persistUsers(ctx)
}

// ClearLocalData wipes the local cache. The explicit recovery action for
// storage quota exhaustion; never triggered automatically. When
// includeRemote is set the mirrored snapshots are dropped too, so a
// restart does not resurrect the cleared data from the remote store.
func (s *ContestService) ClearLocalData(ctx context.Context, includeRemote bool) error {
	if err := s.gateway.Wipe(ctx); err != nil {
		return apperrors.NewInternalError("Failed to clear local data", err)
	}
	if includeRemote {
		if err := s.gateway.WipeRemote(ctx); err != nil {
			return apperrors.NewExternalError("Failed to clear remote data", err)
		}
	}
	return nil
}

// ---- persist-through helpers ----

func (s *ContestService) persistPhotos(ctx context.Context) error {
	return s.wrapSaveErr(s.gateway.Save(ctx, persistence.CollectionPhotos, s.store.Photos()))
}

func (s *ContestService) persistChallenges(ctx context.Context) error {
	return s.wrapSaveErr(s.gateway.Save(ctx, persistence.CollectionChallenges, s.store.Challenges()))
}

func (s *ContestService) persistUsers(ctx context.Context) error {
	return s.wrapSaveErr(s.gateway.Save(ctx, persistence.CollectionUsers, s.store.Users()))
}

func (s *ContestService) persistVotes(ctx context.Context) error {
	return s.wrapSaveErr(s.gateway.Save(ctx, persistence.CollectionVotes, s.store.VotesSnapshot()))
}

// wrapSaveErr maps gateway failures onto the error taxonomy. Quota
// exhaustion is distinct so the client can offer the data-clearing
// recovery action; the in-memory store keeps the mutation either way.
func (s *ContestService) wrapSaveErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrQuotaExceeded) {
		return apperrors.NewQuotaExceededError(
			"Local storage is full. Clear application data to keep saving changes.", err)
	}
	return apperrors.NewInternalError("Failed to persist changes", err)
}
