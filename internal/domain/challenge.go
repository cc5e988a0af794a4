package domain

import "time"

// Phase is the derived lifecycle stage of a challenge. It is never stored;
// it is a pure function of the challenge deadlines and the current time.
type Phase string

const (
	PhaseUpload  Phase = "upload"
	PhaseVoting  Phase = "voting"
	PhaseResults Phase = "results"
)

// Challenge represents a themed contest with its own upload and voting
// windows. Deadlines are millisecond epoch timestamps, matching the wire
// format the frontend consumes. Challenges are immutable once created.
type Challenge struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	UploadDeadline  int64  `json:"uploadDeadline"`
	VotingDeadline  int64  `json:"votingDeadline"`
	CreatorID       string `json:"creatorId"`
	MaxPhotosPerUser int   `json:"maxPhotosPerUser"`
}

// PhaseAt derives the challenge phase at the given instant.
// Total: every instant maps to exactly one phase, and the mapping is
// monotonic in time (upload -> voting -> results, never backwards).
func (c *Challenge) PhaseAt(now time.Time) Phase {
	ms := now.UnixMilli()
	if ms < c.UploadDeadline {
		return PhaseUpload
	}
	if ms < c.VotingDeadline {
		return PhaseVoting
	}
	return PhaseResults
}
