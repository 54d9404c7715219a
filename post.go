package chaupal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhchabran/chaupal/ranking"
)

// PostType discriminates the payload carried by a Post.
type PostType string

const (
	PostNote      PostType = "note"
	PostAlbum     PostType = "album"
	PostClip      PostType = "clip"
	PostThread    PostType = "thread"
	PostCommunity PostType = "community"
	PostEvent     PostType = "event"
)

// Valid reports whether t is one of the known post types.
func (t PostType) Valid() bool {
	switch t {
	case PostNote, PostAlbum, PostClip, PostThread, PostCommunity, PostEvent:
		return true
	}
	return false
}

// Visibility controls who a post is meant for.
type Visibility string

const (
	VisPublic    Visibility = "public"
	VisFollowers Visibility = "followers"
	VisFriends   Visibility = "friends"
	VisCommunity Visibility = "community"
)

type Album struct {
	Images []string `json:"images" yaml:"images"`
	Alt    string   `json:"alt,omitempty" yaml:"alt"`
}

type Clip struct {
	Video string `json:"video" yaml:"video"`
}

type Thread struct {
	Title string   `json:"title" yaml:"title"`
	Parts []string `json:"parts" yaml:"parts"`
}

type CommunityRef struct {
	Name string `json:"name" yaml:"name"`
}

type EventRef struct {
	EventID string `json:"event_id" yaml:"event_id"`
}

// Payload holds the type specific fields of a post. Only the field matching the
// post's Type is set.
type Payload struct {
	Album     *Album        `json:"album,omitempty" yaml:"album,omitempty"`
	Clip      *Clip         `json:"clip,omitempty" yaml:"clip,omitempty"`
	Thread    *Thread       `json:"thread,omitempty" yaml:"thread,omitempty"`
	Community *CommunityRef `json:"community,omitempty" yaml:"community,omitempty"`
	Event     *EventRef     `json:"event,omitempty" yaml:"event,omitempty"`
}

func (pl Payload) Value() (driver.Value, error) {
	return json.Marshal(pl)
}

func (pl *Payload) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("can't decode post payload")
	}

	return json.Unmarshal(b, pl)
}

type Post struct {
	ID         string     `db:"id" json:"id"`
	Type       PostType   `db:"type" json:"type"`
	AuthorID   string     `db:"author_id" json:"author_id"`
	AuthorName string     `db:"author" json:"author"`
	Text       string     `db:"text" json:"text"`
	Visibility Visibility `db:"visibility" json:"visibility"`
	Likes      int64      `db:"likes" json:"likes"`
	Reposts    int64      `db:"reposts" json:"reposts"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Payload    Payload    `db:"payload" json:"payload"`
	Comments   []Comment  `db:"-" json:"comments"`
}

func NewPost(postType PostType, authorID string, text string, payload Payload) *Post {
	return &Post{
		Type:       postType,
		AuthorID:   authorID,
		Text:       text,
		Visibility: VisPublic,
		Payload:    payload,
		Comments:   []Comment{},
		CreatedAt:  NowFunc(),
	}
}

// Author returns the id of the post's author.
func (p Post) Author() string {
	return p.AuthorID
}

// Age returns the creation time of the post.
func (p Post) Age() time.Time {
	return p.CreatedAt
}

// Counters returns the engagement counters the ranker reads.
func (p Post) Counters() ranking.Counters {
	return ranking.Counters{
		Likes:    p.Likes,
		Comments: int64(len(p.Comments)),
		Reposts:  p.Reposts,
	}
}

// Clone returns a copy of the post that shares no slices with p.
func (p Post) Clone() Post {
	c := p
	c.Comments = append([]Comment{}, p.Comments...)

	if p.Payload.Album != nil {
		a := *p.Payload.Album
		a.Images = append([]string{}, a.Images...)
		c.Payload.Album = &a
	}
	if p.Payload.Clip != nil {
		v := *p.Payload.Clip
		c.Payload.Clip = &v
	}
	if p.Payload.Thread != nil {
		t := *p.Payload.Thread
		t.Parts = append([]string{}, t.Parts...)
		c.Payload.Thread = &t
	}
	if p.Payload.Community != nil {
		v := *p.Payload.Community
		c.Payload.Community = &v
	}
	if p.Payload.Event != nil {
		v := *p.Payload.Event
		c.Payload.Event = &v
	}

	return c
}
