package chaupal

import (
	"html/template"
	"time"

	"github.com/jhchabran/chaupal/ranking"
)

// postPresenter decorates a post with what the viewer needs to display it.
type postPresenter struct {
	Post
	Pos        int            `json:"pos"`
	BodyHTML   template.HTML  `json:"body_html"`
	Ago        string         `json:"ago"`
	Liked      bool           `json:"liked"`
	Bookmarked bool           `json:"bookmarked"`
	Score      *ranking.Score `json:"score,omitempty"`
}

func newPostPresenter(snap *Snapshot, post Post, now time.Time) *postPresenter {
	return &postPresenter{
		Post:       post,
		BodyHTML:   renderBody(post.Text),
		Ago:        TimeAgo(post.CreatedAt, now),
		Liked:      snap.Likes.Has(post.ID),
		Bookmarked: snap.Bookmarks.Has(post.ID),
	}
}

// newFeedPresenters turns a ranked feed into presenters, numbered from 1. Scores are only
// attached when explain is true.
func newFeedPresenters(snap *Snapshot, ranked []ranking.Ranked[Post], now time.Time, explain bool) []*postPresenter {
	presenters := make([]*postPresenter, 0, len(ranked))
	for i, r := range ranked {
		pr := newPostPresenter(snap, r.Item, now)
		pr.Pos = i + 1
		if explain {
			score := r.Score
			pr.Score = &score
		}
		presenters = append(presenters, pr)
	}
	return presenters
}

func newPostPresenters(snap *Snapshot, posts []Post, now time.Time) []*postPresenter {
	presenters := make([]*postPresenter, 0, len(posts))
	for i, p := range posts {
		pr := newPostPresenter(snap, p, now)
		pr.Pos = i + 1
		presenters = append(presenters, pr)
	}
	return presenters
}

// profilePresenter is a user as shown on their profile page.
type profilePresenter struct {
	User
	FollowersLabel string           `json:"followers_label"`
	FollowedByMe   bool             `json:"followed_by_me"`
	Following      []string         `json:"following"`
	Posts          []*postPresenter `json:"posts"`
}
