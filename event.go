package chaupal

import "time"

type Event struct {
	ID    string    `db:"id" json:"id"`
	Title string    `db:"title" json:"title"`
	When  time.Time `db:"starts_at" json:"when"`
	Where string    `db:"location" json:"where"`
	Cover string    `db:"cover" json:"cover"`
	Going bool      `db:"going" json:"going"`
}

func NewEvent(title string, when time.Time, cover string) *Event {
	return &Event{
		Title: title,
		When:  when,
		Where: "TBA",
		Cover: cover,
	}
}
