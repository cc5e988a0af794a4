package domain

import "sort"

// LeaderboardSize is how many entries the ranked view exposes
const LeaderboardSize = 5

// RankedPhoto pairs a photo with its computed standing
type RankedPhoto struct {
	Photo   *Photo  `json:"photo"`
	Rank    int     `json:"rank"`
	Average float64 `json:"average"`
	Votes   int     `json:"votes"`
}

// Leaderboard ranks photos by average rating descending, breaking ties by
// vote count descending (more corroborating votes win when averages tie).
// The sort is stable, so photos identical on both keys keep their incoming
// relative order. Returns at most LeaderboardSize entries; the input slice
// is not modified.
func Leaderboard(photos []*Photo) []RankedPhoto {
	sorted := make([]*Photo, len(photos))
	copy(sorted, photos)

	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := sorted[i].Average(), sorted[j].Average()
		if ai != aj {
			return ai > aj
		}
		return sorted[i].VoteCount() > sorted[j].VoteCount()
	})

	n := len(sorted)
	if n > LeaderboardSize {
		n = LeaderboardSize
	}

	ranked := make([]RankedPhoto, 0, n)
	for i := 0; i < n; i++ {
		ranked = append(ranked, RankedPhoto{
			Photo:   sorted[i],
			Rank:    i + 1,
			Average: sorted[i].Average(),
			Votes:   sorted[i].VoteCount(),
		})
	}
	return ranked
}

// CurrentLeader returns the #1 ranked photo, or nil when nothing is ranked
func CurrentLeader(photos []*Photo) *RankedPhoto {
	ranked := Leaderboard(photos)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// SortOption names a gallery ordering
type SortOption string

const (
	SortNewest SortOption = "newest"
	SortOldest SortOption = "oldest"
	SortRating SortOption = "rating"
)

// SortPhotos orders a gallery slice in place. newest is the default for
// any unrecognized option. The rating sort has no secondary key; ties keep
// their incoming relative order.
func SortPhotos(photos []*Photo, by SortOption) {
	switch by {
	case SortOldest:
		sort.SliceStable(photos, func(i, j int) bool {
			return photos[i].CreatedAt < photos[j].CreatedAt
		})
	case SortRating:
		sort.SliceStable(photos, func(i, j int) bool {
			return photos[i].Average() > photos[j].Average()
		})
	default:
		sort.SliceStable(photos, func(i, j int) bool {
			return photos[i].CreatedAt > photos[j].CreatedAt
		})
	}
}
