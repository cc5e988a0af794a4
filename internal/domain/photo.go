package domain

// Photo represents a submission within a challenge. Ratings is an
// append-only log in vote arrival order; entries are never edited or
// removed. AIFeedback is optional metadata attached at most once, after
// the upload has already succeeded.
type Photo struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challengeId"`
	UserID      string `json:"userId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Ratings     []int  `json:"ratings"`
	CreatedAt   int64  `json:"createdAt"`
	AIFeedback  string `json:"aiFeedback,omitempty"`
}

// Average folds the rating log into a mean, 0 for an unrated photo.
// Computed fresh on demand; rating lists are bounded and small.
func (p *Photo) Average() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r
	}
	return float64(sum) / float64(len(p.Ratings))
}

// VoteCount returns the number of ratings the photo has received
func (p *Photo) VoteCount() int {
	return len(p.Ratings)
}
