package recognition

import (
	"math"
	"sort"
)

// DefaultThreshold is the similarity a match must exceed to be accepted.
const DefaultThreshold = 0.4

// EuclideanDistance calculates the Euclidean distance between two vectors.
func EuclideanDistance(a, b FeatureVector) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Similarity is 1 minus the Euclidean distance. It is symmetric and
// unbounded below: vectors further apart than 1 score negative.
func Similarity(a, b FeatureVector) float64 {
	return 1.0 - EuclideanDistance(a, b)
}

// Match returns the gallery entry most similar to query. Entries are
// visited in user id order and only a strictly greater score replaces the
// current best, so ties resolve to the smallest user id. An empty gallery
// returns ("", 0, false).
func Match(query FeatureVector, gallery map[string]FeatureVector) (string, float64, bool) {
	if len(gallery) == 0 {
		return "", 0, false
	}

	ids := make([]string, 0, len(gallery))
	for id := range gallery {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID := ""
	bestScore := math.Inf(-1)
	for _, id := range ids {
		if score := Similarity(query, gallery[id]); score > bestScore {
			bestID = id
			bestScore = score
		}
	}

	return bestID, bestScore, true
}

// Matcher applies the accept/reject threshold to match scores.
type Matcher struct {
	Threshold float64
}

// NewMatcher creates a matcher with the given threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

// Accept reports whether score is strictly greater than the threshold.
func (m *Matcher) Accept(score float64) bool {
	return score > m.Threshold
}

// Decision is the outcome of matching a query against a gallery.
type Decision struct {
	UserID   string
	Score    float64
	Found    bool // gallery was not empty
	Accepted bool
}

// Decide matches query against gallery and applies the threshold.
func (m *Matcher) Decide(query FeatureVector, gallery map[string]FeatureVector) Decision {
	id, score, found := Match(query, gallery)
	return Decision{
		UserID:   id,
		Score:    score,
		Found:    found,
		Accepted: found && m.Accept(score),
	}
}
