package chaupal

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	NoteCharLimit  = 500
	OtherCharLimit = 2000
)

// A Draft is what the composer submits.
type Draft struct {
	Type      PostType  `json:"type"`
	Text      string    `json:"text"`
	Media     []string  `json:"media"`
	Alt       string    `json:"alt"`
	Community string    `json:"community"`
	Title     string    `json:"event_title"`
	When      time.Time `json:"event_time"`
	Where     string    `json:"event_where"`
}

// Validate checks the draft the same way the composer does before enabling submission.
func (d *Draft) Validate() error {
	var invalid []string

	if d.Type == "" {
		d.Type = PostNote
	}
	if !d.Type.Valid() {
		return UnprocessableEntity("type")
	}

	text := strings.TrimSpace(d.Text)
	if text == "" && len(d.Media) == 0 && d.Type != PostEvent {
		invalid = append(invalid, "text")
	}

	limit := OtherCharLimit
	if d.Type == PostNote {
		limit = NoteCharLimit
	}
	if utf8.RuneCountInString(d.Text) > limit {
		invalid = append(invalid, "text")
	}

	if d.Type == PostAlbum && len(d.Media) > 0 && strings.TrimSpace(d.Alt) == "" {
		invalid = append(invalid, "alt")
	}

	if d.Type == PostCommunity && strings.TrimSpace(d.Community) == "" {
		invalid = append(invalid, "community")
	}

	if d.Type == PostEvent {
		if strings.TrimSpace(d.Title) == "" {
			invalid = append(invalid, "event_title")
		}
		if d.When.IsZero() {
			invalid = append(invalid, "event_time")
		}
	}

	if len(invalid) > 0 {
		return UnprocessableEntity(invalid...)
	}

	return nil
}

// Post builds the post described by the draft. Event drafts need the id of the event
// created alongside the post.
func (d *Draft) Post(authorID string, eventID string) *Post {
	text := strings.TrimSpace(d.Text)
	var payload Payload

	switch d.Type {
	case PostAlbum:
		payload.Album = &Album{Images: append([]string{}, d.Media...), Alt: strings.TrimSpace(d.Alt)}
	case PostClip:
		var video string
		if len(d.Media) > 0 {
			video = d.Media[0]
		}
		payload.Clip = &Clip{Video: video}
	case PostThread:
		var parts []string
		for _, l := range strings.Split(text, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				parts = append(parts, l)
			}
		}
		var title string
		if len(parts) > 0 {
			title = parts[0]
		}
		payload.Thread = &Thread{Title: title, Parts: parts}
	case PostCommunity:
		payload.Community = &CommunityRef{Name: strings.TrimSpace(d.Community)}
	case PostEvent:
		payload.Event = &EventRef{EventID: eventID}
		text = strings.TrimSpace(d.Title)
	}

	post := NewPost(d.Type, authorID, text, payload)
	if d.Type == PostCommunity {
		post.Visibility = VisCommunity
	}

	return post
}

// Event builds the event announced by an event draft.
func (d *Draft) Event() *Event {
	cover := "https://picsum.photos/800/400"
	if len(d.Media) > 0 {
		cover = d.Media[0]
	}

	event := NewEvent(strings.TrimSpace(d.Title), d.When, cover)
	if w := strings.TrimSpace(d.Where); w != "" {
		event.Where = w
	}

	return event
}
