package chaupal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func invalidFields(t *testing.T, err error) []string {
	var uerr *UnprocessableEntityError
	require.True(t, errors.As(err, &uerr), "expected an unprocessable entity error, got %v", err)
	return uerr.Fields()
}

func TestDraftValidate(t *testing.T) {
	t.Run("plain note", func(t *testing.T) {
		d := &Draft{Text: "Namaste"}
		require.NoError(t, d.Validate())
		require.Equal(t, PostNote, d.Type)
	})

	t.Run("empty note", func(t *testing.T) {
		d := &Draft{Type: PostNote, Text: "   "}
		require.Equal(t, []string{"text"}, invalidFields(t, d.Validate()))
	})

	t.Run("media without text", func(t *testing.T) {
		d := &Draft{Type: PostClip, Media: []string{"https://example.com/a.mp4"}}
		require.NoError(t, d.Validate())
	})

	t.Run("note over the char limit", func(t *testing.T) {
		d := &Draft{Type: PostNote, Text: strings.Repeat("a", NoteCharLimit+1)}
		require.Equal(t, []string{"text"}, invalidFields(t, d.Validate()))

		d = &Draft{Type: PostThread, Text: strings.Repeat("a", NoteCharLimit+1)}
		require.NoError(t, d.Validate())
	})

	t.Run("album images need alt text", func(t *testing.T) {
		d := &Draft{Type: PostAlbum, Media: []string{"https://example.com/a.jpg"}}
		require.Equal(t, []string{"alt"}, invalidFields(t, d.Validate()))

		d.Alt = "Ghats at dawn"
		require.NoError(t, d.Validate())
	})

	t.Run("event needs title and time", func(t *testing.T) {
		d := &Draft{Type: PostEvent}
		require.Equal(t, []string{"event_title", "event_time"}, invalidFields(t, d.Validate()))
	})

	t.Run("unknown type", func(t *testing.T) {
		d := &Draft{Type: "poll", Text: "?"}
		require.Equal(t, []string{"type"}, invalidFields(t, d.Validate()))
	})
}

func TestDraftPost(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2020-01-01T12:00:00Z")

	withFakeNow(func() time.Time { return now }, func() {
		t.Run("thread splits lines", func(t *testing.T) {
			d := &Draft{Type: PostThread, Text: "Lessons\n\nPrep beats luck\nShip it\n"}
			p := d.Post("u1", "")
			require.Equal(t, "Lessons", p.Payload.Thread.Title)
			require.Equal(t, []string{"Lessons", "Prep beats luck", "Ship it"}, p.Payload.Thread.Parts)
			require.Equal(t, now, p.CreatedAt)
			require.Equal(t, "u1", p.AuthorID)
			require.Equal(t, VisPublic, p.Visibility)
		})

		t.Run("event post references its event", func(t *testing.T) {
			d := &Draft{Type: PostEvent, Title: " Seva Drive ", When: now.Add(48 * time.Hour)}
			p := d.Post("u1", "e9")
			require.Equal(t, "Seva Drive", p.Text)
			require.Equal(t, "e9", p.Payload.Event.EventID)

			e := d.Event()
			require.Equal(t, "Seva Drive", e.Title)
			require.Equal(t, "TBA", e.Where)
		})

		t.Run("community posts are scoped to the community", func(t *testing.T) {
			d := &Draft{Type: PostCommunity, Text: "Meetup", Community: "Bharat Devs"}
			p := d.Post("u2", "")
			require.Equal(t, VisCommunity, p.Visibility)
			require.Equal(t, "Bharat Devs", p.Payload.Community.Name)
		})
	})
}
