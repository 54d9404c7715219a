// Package slackhook announces new posts on a Slack channel through an incoming webhook.
package slackhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhchabran/chaupal"
	"github.com/slack-go/slack"
)

const excerptLen = 280

type Hook struct {
	webhookURL string
	baseURL    string
	timeout    time.Duration
}

// New returns a hook posting to webhookURL. Links in messages are built on baseURL, the public
// address of the server.
func New(webhookURL string, baseURL string) *Hook {
	return &Hook{
		webhookURL: webhookURL,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    5 * time.Second,
	}
}

// Message builds the webhook payload announcing post.
func (h *Hook) Message(post *chaupal.Post) *slack.WebhookMessage {
	title := string(post.Type)
	if post.Payload.Thread != nil {
		title = post.Payload.Thread.Title
	}

	attachment := slack.Attachment{
		AuthorName: post.AuthorName,
		Title:      title,
		TitleLink:  fmt.Sprintf("%s/api/posts/%s", h.baseURL, post.ID),
		Text:       excerpt(post.Text),
		Footer:     string(post.Visibility),
	}
	if tags := chaupal.Hashtags(post.Text); len(tags) > 0 {
		attachment.Fields = []slack.AttachmentField{
			{Title: "Tags", Value: "#" + strings.Join(tags, " #"), Short: true},
		}
	}

	return &slack.WebhookMessage{
		Text:        fmt.Sprintf("New %s by %s", post.Type, post.AuthorName),
		Attachments: []slack.Attachment{attachment},
	}
}

// PostHook sends the announcement of post. It matches chaupal.PostHook.
func (h *Hook) PostHook(post *chaupal.Post) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := slack.PostWebhookContext(ctx, h.webhookURL, h.Message(post)); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

func excerpt(text string) string {
	r := []rune(text)
	if len(r) <= excerptLen {
		return text
	}
	return string(r[:excerptLen-1]) + "…"
}
