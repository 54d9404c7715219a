package slackhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/chaupal"
	"github.com/slack-go/slack"
)

func TestMessage(t *testing.T) {
	c := qt.New(t)
	h := New("http://unused", "https://chaupal.example/")

	c.Run("note", func(c *qt.C) {
		post := &chaupal.Post{
			ID:         "p1",
			Type:       chaupal.PostNote,
			AuthorName: "Anil Desai",
			Text:       "Just finished #Trisandhya",
			Visibility: chaupal.VisPublic,
		}

		msg := h.Message(post)
		c.Assert(msg.Text, qt.Equals, "New note by Anil Desai")
		c.Assert(msg.Attachments, qt.HasLen, 1)

		a := msg.Attachments[0]
		c.Assert(a.TitleLink, qt.Equals, "https://chaupal.example/api/posts/p1")
		c.Assert(a.Text, qt.Equals, "Just finished #Trisandhya")
		c.Assert(a.Fields, qt.HasLen, 1)
		c.Assert(a.Fields[0].Value, qt.Equals, "#trisandhya")
	})

	c.Run("thread uses its title", func(c *qt.C) {
		post := &chaupal.Post{
			ID:   "p6",
			Type: chaupal.PostThread,
			Payload: chaupal.Payload{
				Thread: &chaupal.Thread{Title: "5 lessons", Parts: []string{"5 lessons", "Ship it"}},
			},
		}

		msg := h.Message(post)
		c.Assert(msg.Attachments[0].Title, qt.Equals, "5 lessons")
		c.Assert(msg.Attachments[0].Fields, qt.HasLen, 0)
	})

	c.Run("long text is cut", func(c *qt.C) {
		post := &chaupal.Post{ID: "p9", Type: chaupal.PostNote, Text: strings.Repeat("ॐ", 400)}
		text := []rune(h.Message(post).Attachments[0].Text)
		c.Assert(text, qt.HasLen, excerptLen)
		c.Assert(string(text[len(text)-1]), qt.Equals, "…")
	})
}

func TestPostHook(t *testing.T) {
	c := qt.New(t)

	c.Run("sends the message", func(c *qt.C) {
		var got slack.WebhookMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Check(r.Method, qt.Equals, "POST")
			c.Check(json.NewDecoder(r.Body).Decode(&got), qt.IsNil)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		h := New(srv.URL, "https://chaupal.example")
		err := h.PostHook(&chaupal.Post{ID: "p1", Type: chaupal.PostNote, AuthorName: "Asha Sharma", Text: "Colors of Varanasi"})
		c.Assert(err, qt.IsNil)
		c.Assert(got.Text, qt.Equals, "New note by Asha Sharma")
		c.Assert(got.Attachments[0].Text, qt.Equals, "Colors of Varanasi")
	})

	c.Run("reports failures", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid_token", http.StatusForbidden)
		}))
		defer srv.Close()

		h := New(srv.URL, "https://chaupal.example")
		err := h.PostHook(&chaupal.Post{ID: "p1", Type: chaupal.PostNote})
		c.Assert(err, qt.ErrorMatches, "slack webhook: .*")
	})
}
