package domain

// MinRating and MaxRating bound the star scale a vote may carry
const (
	MinRating = 1
	MaxRating = 5
)

// CanUpload decides whether user may submit another photo to challenge
// right now. All four conditions are mandatory; the absence of any one
// fails closed:
//   - an uploading role (photographer, editor or admin),
//   - an approved account,
//   - the challenge still in its upload phase,
//   - quota headroom left for this user in this challenge.
func CanUpload(u *User, c *Challenge, phase Phase, existingPhotos int) bool {
	if u == nil || c == nil {
		return false
	}
	if !HasCapability(u, CapUploadPhoto) {
		return false
	}
	if !u.IsApproved {
		return false
	}
	if phase != PhaseUpload {
		return false
	}
	return existingPhotos < c.MaxPhotosPerUser
}

// CanVote decides whether the acting session may still rate the photo:
// voting must be open and the session must not have rated it before.
// One vote per photo per session identity; votes cannot be revised.
func CanVote(photoID string, phase Phase, voted VotedSet) bool {
	if phase != PhaseVoting {
		return false
	}
	return !voted.Contains(photoID)
}

// ValidRating reports whether v is on the 1..5 star scale
func ValidRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}

// VotedSet records the photo IDs one session identity has already rated.
// It prevents double voting; it is a trust-based record, not a
// cryptographic one.
type VotedSet map[string]struct{}

// Contains reports whether the photo has already been rated by this session
func (s VotedSet) Contains(photoID string) bool {
	_, ok := s[photoID]
	return ok
}

// Add marks the photo as rated
func (s VotedSet) Add(photoID string) {
	s[photoID] = struct{}{}
}

// IDs returns the member photo IDs as a slice (order unspecified)
func (s VotedSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}
