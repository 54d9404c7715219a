package ranking

import (
	"math"
	"sort"
	"time"
)

// Defaults for Hot, the usual Hacker News values.
const (
	DefaultGravity  = 1.8
	DefaultTimebase = 2.0
)

// Hot scores an item the way Hacker News orders its front page: raw engagement pulled down by a
// gravity applied on its age. It ignores who is looking, which makes it fit for discovery pages.
func Hot(item Rankable, gravity float64, timebaseInHours float64, referenceTime time.Time) float64 {
	hours := math.Max(0, referenceTime.Sub(item.Age()).Hours())
	s := item.Counters().Raw()

	return float64(s) / math.Pow(timebaseInHours+hours, gravity)
}

// RankHot returns a new slice holding the same items ordered by descending Hot score.
func RankHot[T Rankable](items []T, gravity float64, timebaseInHours float64, referenceTime time.Time) []T {
	scores := make([]float64, len(items))
	idx := make([]int, len(items))
	for i, item := range items {
		scores[i] = Hot(item, gravity, timebaseInHours, referenceTime)
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	res := make([]T, len(items))
	for i, j := range idx {
		res[i] = items[j]
	}

	return res
}
