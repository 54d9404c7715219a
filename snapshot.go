package chaupal

import (
	"time"

	"github.com/jhchabran/chaupal/ranking"
)

// A Snapshot is a point-in-time copy of what a viewer can see. It shares no
// memory with the store it was taken from, so it can be ranked and rendered
// while the store keeps changing.
type Snapshot struct {
	Version   uint64
	Viewer    User
	Posts     []Post
	Likes     IDSet
	Bookmarks IDSet
}

// Anonymous reports whether the snapshot was taken for a visitor with no session.
func (s *Snapshot) Anonymous() bool {
	return s.Viewer.ID == ""
}

// RankedFeed orders the snapshot's posts for its viewer as of now.
func (s *Snapshot) RankedFeed(now time.Time) []ranking.Ranked[Post] {
	return ranking.RankWithScores(s.Posts, &s.Viewer, now)
}

// FindPost returns the post with the given id, if the snapshot holds it.
func (s *Snapshot) FindPost(id string) (Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}
