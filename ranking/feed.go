package ranking

import (
	"math"
	"sort"
	"time"
)

const (
	// DecayHours is the span over which the recency term goes from 1 to 0.
	DecayHours = 48

	RecencyWeight    = 1.5
	EngagementWeight = 1.0
	AffinityWeight   = 2.0

	LikeWeight    = 1
	CommentWeight = 3
	RepostWeight  = 5
)

// Counters are the engagement counters of a post, read at ranking time.
type Counters struct {
	Likes    int64
	Comments int64
	Reposts  int64
}

// Raw returns the weighted, undampened engagement.
func (c Counters) Raw() int64 {
	return c.Likes*LikeWeight + c.Comments*CommentWeight + c.Reposts*RepostWeight
}

// Rankable is anything that can be placed in a feed.
type Rankable interface {
	Author() string
	Age() time.Time
	Counters() Counters
}

// Viewer is the user a feed is ranked for.
type Viewer interface {
	Follows(authorID string) bool
}

// Score is the breakdown of a single item's score.
type Score struct {
	Recency    float64 `json:"recency"`
	Engagement float64 `json:"engagement"`
	Affinity   float64 `json:"affinity"`
	Total      float64 `json:"total"`
}

// Ranked pairs an item with the score it was ordered by.
type Ranked[T Rankable] struct {
	Item  T
	Score Score
}

// Explain computes the score of item as seen by viewer at the given reference time.
func Explain(item Rankable, viewer Viewer, referenceTime time.Time) Score {
	hours := referenceTime.Sub(item.Age()).Hours()
	recency := clamp(1-hours/DecayHours, 0, 1)

	engagement := math.Log1p(float64(item.Counters().Raw()))

	var affinity float64
	if viewer != nil && viewer.Follows(item.Author()) {
		affinity = 1
	}

	return Score{
		Recency:    recency,
		Engagement: engagement,
		Affinity:   affinity,
		Total:      recency*RecencyWeight + engagement*EngagementWeight + affinity*AffinityWeight,
	}
}

// RankWithScores orders items by descending score. Items with equal scores keep
// their relative input order. The input slice is left untouched.
func RankWithScores[T Rankable](items []T, viewer Viewer, referenceTime time.Time) []Ranked[T] {
	ranked := make([]Ranked[T], len(items))
	for i, item := range items {
		ranked[i] = Ranked[T]{Item: item, Score: Explain(item, viewer, referenceTime)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Total > ranked[j].Score.Total
	})

	return ranked
}

// Rank returns a new slice holding the same items, most relevant first.
func Rank[T Rankable](items []T, viewer Viewer, referenceTime time.Time) []T {
	ranked := RankWithScores(items, viewer, referenceTime)

	res := make([]T, len(ranked))
	for i, r := range ranked {
		res[i] = r.Item
	}

	return res
}

func clamp(v, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, v))
}
