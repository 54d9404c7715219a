package chaupal

import "time"

// Messages shown after the actor's name.
const (
	MsgLiked     = "liked your post"
	MsgCommented = "commented on your post"
	MsgFollowed  = "followed you"
)

type Notification struct {
	ID          string    `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"-"`
	Actor       string    `db:"actor" json:"actor"`
	Message     string    `db:"message" json:"msg"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func NewNotification(recipientID string, actor string, message string) *Notification {
	return &Notification{
		RecipientID: recipientID,
		Actor:       actor,
		Message:     message,
		CreatedAt:   NowFunc(),
	}
}
