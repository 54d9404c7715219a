package chaupal

import (
	"time"
)

type Comment struct {
	ID         string    `db:"id" json:"id"`
	PostID     string    `db:"post_id" json:"post_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author" json:"author"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func NewComment(postID string, text string, authorID string) *Comment {
	return &Comment{
		PostID:    postID,
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: NowFunc(),
	}
}
