// Package store holds the in-memory domain collections: users, challenges,
// photos and the per-session voted sets. It is the single source of truth
// the rest of the application reads and writes; the persistence gateway
// only ever sees snapshots taken from here. All mutations go through
// command methods serialized under one mutex, so a guard check and the
// mutation it guards are atomic within the process.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"fotochallenge-api/internal/domain"
)

var (
	// ErrNotFound is returned when an entity cannot be resolved
	ErrNotFound = errors.New("store: not found")
	// ErrQuotaReached is returned when a user has no upload slots left
	ErrQuotaReached = errors.New("store: photo quota reached")
	// ErrAlreadyVoted is returned when a session rated the photo before
	ErrAlreadyVoted = errors.New("store: already voted")
)

// Store owns the domain collections
type Store struct {
	mu         sync.RWMutex
	photos     []*domain.Photo     // newest first
	challenges []*domain.Challenge // newest first
	users      []*domain.User
	voted      map[string]domain.VotedSet // session identity -> rated photo IDs
}

// New creates an empty store
func New() *Store {
	return &Store{voted: make(map[string]domain.VotedSet)}
}

// NewID returns a fresh entity identifier
func NewID() string {
	return uuid.NewString()
}

// ---- users ----

// User returns a copy of the user with the given ID
func (s *Store) User(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UserByRole returns the first user carrying the role, if any
func (s *Store) UserByRole(role domain.UserRole) (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Role == role {
			cp := *u
			return &cp, true
		}
	}
	return nil, false
}

// AddUser appends a new user account
func (s *Store) AddUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users = append(s.users, &cp)
}

// ApproveUser flips the approval gate on a user
func (s *Store) ApproveUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.IsApproved = true
			return nil
		}
	}
	return ErrNotFound
}

// ChangeUserRole reassigns a user's role
func (s *Store) ChangeUserRole(id string, role domain.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.Role = role
			return nil
		}
	}
	return ErrNotFound
}

// Users returns a snapshot copy of all users
func (s *Store) Users() []*domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUsers(s.users)
}

// ---- challenges ----

// Challenge returns a copy of the challenge with the given ID
func (s *Store) Challenge(id string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.challenges {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// AddChallenge prepends a challenge (newest-first storage order)
func (s *Store) AddChallenge(c *domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.challenges = append([]*domain.Challenge{&cp}, s.challenges...)
}

// Challenges returns a snapshot copy of all challenges, newest first
func (s *Store) Challenges() []*domain.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyChallenges(s.challenges)
}

// ---- photos ----

// Photo returns a copy of the photo with the given ID
func (s *Store) Photo(id string) (*domain.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.photos {
		if p.ID == id {
			return copyPhoto(p), nil
		}
	}
	return nil, ErrNotFound
}

// PhotosByChallenge returns copies of the photos submitted to a challenge,
// in storage order (newest first)
func (s *Store) PhotosByChallenge(challengeID string) []*domain.Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Photo
	for _, p := range s.photos {
		if p.ChallengeID == challengeID {
			out = append(out, copyPhoto(p))
		}
	}
	return out
}

// CountUserPhotos counts a user's submissions within one challenge
func (s *Store) CountUserPhotos(challengeID, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.photos {
		if p.ChallengeID == challengeID && p.UserID == userID {
			n++
		}
	}
	return n
}

// InsertPhoto prepends a photo, re-checking the quota under the store lock
// so two near-simultaneous uploads cannot both claim the last slot within
// this process. maxPerUser <= 0 means no quota check (trusted caller).
func (s *Store) InsertPhoto(p *domain.Photo, maxPerUser int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxPerUser > 0 {
		n := 0
		for _, existing := range s.photos {
			if existing.ChallengeID == p.ChallengeID && existing.UserID == p.UserID {
				n++
			}
		}
		if n >= maxPerUser {
			return ErrQuotaReached
		}
	}
	s.photos = append([]*domain.Photo{copyPhoto(p)}, s.photos...)
	return nil
}

// AttachFeedback merges AI critique text into an existing photo. Feedback
// is optional metadata set at most once; a second attach is ignored, as is
// an attach for a photo that no longer resolves.
func (s *Store) AttachFeedback(photoID, feedback string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.ID == photoID {
			if p.AIFeedback == "" {
				p.AIFeedback = feedback
			}
			return
		}
	}
}

// Photos returns a snapshot copy of all photos, newest first
func (s *Store) Photos() []*domain.Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Photo, len(s.photos))
	for i, p := range s.photos {
		out[i] = copyPhoto(p)
	}
	return out
}

// ---- votes ----

// HasVoted reports whether the session already rated the photo
func (s *Store) HasVoted(session, photoID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voted[session].Contains(photoID)
}

// VotedSet returns a copy of the session's voted set
func (s *Store) VotedSet(session string) domain.VotedSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(domain.VotedSet, len(s.voted[session]))
	for id := range s.voted[session] {
		cp.Add(id)
	}
	return cp
}

// RecordVote appends a rating to the photo's log and marks the photo as
// rated by the session. The duplicate check and the append are atomic;
// a duplicate leaves both the ratings log and the voted set untouched.
func (s *Store) RecordVote(session, photoID string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voted[session].Contains(photoID) {
		return ErrAlreadyVoted
	}
	for _, p := range s.photos {
		if p.ID == photoID {
			p.Ratings = append(p.Ratings, value)
			if s.voted[session] == nil {
				s.voted[session] = make(domain.VotedSet)
			}
			s.voted[session].Add(photoID)
			return nil
		}
	}
	return ErrNotFound
}

// VotesSnapshot serializes the voted sets as session -> photo IDs
func (s *Store) VotesSnapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.voted))
	for session, set := range s.voted {
		out[session] = set.IDs()
	}
	return out
}

// ---- bulk replace (used by bootstrap) ----

// Replace swaps in freshly loaded collections wholesale
func (s *Store) Replace(photos []*domain.Photo, challenges []*domain.Challenge, users []*domain.User, votes map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = make([]*domain.Photo, len(photos))
	for i, p := range photos {
		s.photos[i] = copyPhoto(p)
	}
	s.challenges = copyChallenges(challenges)
	s.users = copyUsers(users)
	s.voted = make(map[string]domain.VotedSet, len(votes))
	for session, ids := range votes {
		set := make(domain.VotedSet, len(ids))
		for _, id := range ids {
			set.Add(id)
		}
		s.voted[session] = set
	}
}

// ---- seeding ----

// Seed content used when the persisted collections come back empty
const (
	seedChallengeTitle       = "1. Signs of Time"
	seedChallengeDescription = "Capture the transience of things, the aging of materials, or traces of history in the everyday world."
	seedChallengeThumbnail   = "https://images.unsplash.com/photo-1516518151593-90d659e5e780?q=80&w=1200"
	seedMaxPhotosPerUser     = 6
)

// SeedChallenge builds the default challenge installed on first start:
// a one-day upload window followed by a one-day voting window.
func SeedChallenge(now time.Time) *domain.Challenge {
	nowMs := now.UnixMilli()
	return &domain.Challenge{
		ID:               NewID(),
		Title:            seedChallengeTitle,
		Description:      seedChallengeDescription,
		ThumbnailURL:     seedChallengeThumbnail,
		UploadDeadline:   nowMs + 24*time.Hour.Milliseconds(),
		VotingDeadline:   nowMs + 48*time.Hour.Milliseconds(),
		CreatorID:        "system",
		MaxPhotosPerUser: seedMaxPhotosPerUser,
	}
}

// SeedUsers builds the default accounts installed on first start: one
// admin and one guest. Clients default to acting as the guest.
func SeedUsers() []*domain.User {
	return []*domain.User{
		{ID: NewID(), Username: "Filip_Admin", Role: domain.RoleAdmin, IsApproved: true},
		{ID: NewID(), Username: "Guest_User", Role: domain.RoleGuest, IsApproved: true},
	}
}

// ---- copy helpers ----

func copyPhoto(p *domain.Photo) *domain.Photo {
	cp := *p
	cp.Ratings = append([]int(nil), p.Ratings...)
	return &cp
}

func copyChallenges(in []*domain.Challenge) []*domain.Challenge {
	out := make([]*domain.Challenge, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}

func copyUsers(in []*domain.User) []*domain.User {
	out := make([]*domain.User, len(in))
	for i, u := range in {
		cp := *u
		out[i] = &cp
	}
	return out
}
