package chaupal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jhchabran/chaupal/metrics"
	"github.com/jhchabran/chaupal/ranking"
	"github.com/julienschmidt/httprouter"
	"github.com/samber/lo"
)

// maxBodyBytes bounds the JSON bodies the API accepts.
const maxBodyBytes = 1 << 20

// HandleIndex handles requests for the root path, rendering the ranked home feed of the viewer.
// Visitors without a session get the feed of someone following nobody.
func (s *Server) HandleIndex() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		snap, err := s.viewerSnapshot(req)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		users, err := s.store.ListUsers()
		if err != nil {
			s.fail(res, req, err)
			return
		}

		now := NowFunc()
		ranked := s.rankFeed(snap, now)

		vars := map[string]interface{}{
			"Posts":   newFeedPresenters(snap, ranked, now, false),
			"Users":   users,
			"Version": snap.Version,
		}
		if !snap.Anonymous() {
			vars["Viewer"] = snap.Viewer
		}

		res.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = s.templates.ExecuteTemplate(res, "index.html", vars)
		if err != nil {
			s.Logger.Error().Err(err).Msg("Failed to render template")
			http.Error(res, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

type loginRequest struct {
	UserID string `json:"user_id"`
}

// HandleLogin handles requests picking a mock identity. JSON clients get the picked user back,
// form submissions are redirected to the root path.
func (s *Server) HandleLogin() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		isJSON := strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")

		var login loginRequest
		if isJSON {
			if err := decodeJSON(res, req, &login); err != nil {
				s.fail(res, req, err)
				return
			}
		} else {
			if err := req.ParseForm(); err != nil {
				s.fail(res, req, BadRequest(err))
				return
			}
			login.UserID = strings.TrimSpace(req.FormValue("user_id"))
		}

		if login.UserID == "" {
			s.fail(res, req, UnprocessableEntity("user_id"))
			return
		}

		user, err := s.store.FindUser(login.UserID)
		if err != nil {
			if Maybe404(err).Is404() {
				s.fail(res, req, UnprocessableEntityWithError(err, "user_id"))
				return
			}
			s.fail(res, req, err)
			return
		}

		if _, err := s.authService.Login(res, req, user.ID); err != nil {
			s.Logger.Error().Err(err).Msg("Failed to save session")
			s.fail(res, req, err)
			return
		}

		if !isJSON {
			http.Redirect(res, req, "/", http.StatusFound)
			return
		}
		s.respondJSON(res, http.StatusOK, user)
	}
}

// HandleLogout handles requests dropping the current session.
func (s *Server) HandleLogout() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		if err := s.authService.Destroy(res, req); err != nil {
			s.Logger.Error().Err(err).Msg("Failed to destroy session")
			s.fail(res, req, err)
			return
		}
		res.WriteHeader(http.StatusNoContent)
	}
}

// HandleUsers lists the identities a visitor can pick.
func (s *Server) HandleUsers() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		users, err := s.store.ListUsers()
		if err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusOK, users)
	}
}

// HandleFeed handles requests for the ranked home feed of the viewer. Passing explain=1 attaches
// the score breakdown of each post.
func (s *Server) HandleFeed() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		snap, err := s.viewerSnapshot(req)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		now := NowFunc()
		ranked := s.rankFeed(snap, now)
		explain := req.URL.Query().Get("explain") == "1"

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"version": snap.Version,
			"posts":   newFeedPresenters(snap, ranked, now, explain),
		})
	}
}

// HandleExplore handles requests for public posts ordered by how hot they are, optionally
// restricted to those carrying the hashtag given by tag.
func (s *Server) HandleExplore() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		snap, err := s.viewerSnapshot(req)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		tag := strings.TrimSpace(req.URL.Query().Get("tag"))
		posts := lo.Filter(snap.Posts, func(p Post, _ int) bool {
			return p.Visibility == VisPublic && (tag == "" || HasHashtag(p.Text, tag))
		})

		now := NowFunc()
		start := time.Now()
		hot := ranking.RankHot(posts, s.config.HotGravity, s.config.HotTimebase, now)
		metrics.ObserveRanking("explore", len(hot), time.Since(start))

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"tag":   tag,
			"posts": newPostPresenters(snap, hot, now),
		})
	}
}

// HandlePost handles requests for a single post and its comments.
func (s *Server) HandlePost() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		snap, err := s.viewerSnapshot(req)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		id := params.ByName("id")
		post, ok := snap.FindPost(id)
		if !ok {
			s.fail(res, req, Maybe404(fmt.Errorf("post %q: %w", id, ErrNotFound)))
			return
		}

		s.respondJSON(res, http.StatusOK, newPostPresenter(snap, post, NowFunc()))
	}
}

// HandleCreatePost handles requests publishing a post from a composer draft. Event drafts also
// create the event the post announces. Post hooks run once the post is stored.
func (s *Server) HandleCreatePost() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		user := ctxUser(req.Context())

		var draft Draft
		if err := decodeJSON(res, req, &draft); err != nil {
			s.fail(res, req, err)
			return
		}
		if err := draft.Validate(); err != nil {
			s.fail(res, req, err)
			return
		}

		var eventID string
		if draft.Type == PostEvent {
			event := draft.Event()
			if err := s.store.InsertEvent(event); err != nil {
				s.Logger.Error().Err(err).Msg("Failed to insert event")
				s.fail(res, req, err)
				return
			}
			eventID = event.ID
		}

		post := draft.Post(user.ID, eventID)
		if err := s.store.InsertPost(post); err != nil {
			s.Logger.Error().Err(err).Msg("Failed to insert post")
			s.fail(res, req, err)
			return
		}

		for _, h := range s.postHooks {
			if err := h.hook(post); err != nil {
				metrics.HookFailed(h.name)
				s.Logger.Warn().Err(err).Str("hook", h.name).Str("post_id", post.ID).Msg("post hook failed")
			}
		}

		snap, err := s.store.Snapshot(user.ID)
		if err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusCreated, newPostPresenter(snap, *post, NowFunc()))
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleCreateComment handles requests commenting on a post. The author of the post is notified.
func (s *Server) HandleCreateComment() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())

		var body commentRequest
		if err := decodeJSON(res, req, &body); err != nil {
			s.fail(res, req, err)
			return
		}
		text := strings.TrimSpace(body.Text)
		if text == "" || len([]rune(text)) > NoteCharLimit {
			s.fail(res, req, UnprocessableEntity("text"))
			return
		}

		post, err := s.store.FindPost(params.ByName("id"))
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		comment := NewComment(post.ID, text, user.ID)
		if err := s.store.InsertComment(comment); err != nil {
			s.Logger.Error().Err(err).Msg("Failed to insert comment")
			s.fail(res, req, Maybe404(err))
			return
		}

		s.notify(post.AuthorID, user, MsgCommented)
		s.respondJSON(res, http.StatusCreated, comment)
	}
}

// HandleLike handles requests toggling the viewer's like on a post. Liking someone else's post
// notifies them.
func (s *Server) HandleLike() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())
		id := params.ByName("id")

		liked, err := s.store.ToggleLike(user.ID, id)
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		post, err := s.store.FindPost(id)
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}
		if liked {
			s.notify(post.AuthorID, user, MsgLiked)
		}

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"liked": liked,
			"likes": post.Likes,
		})
	}
}

// HandleBookmark handles requests toggling the viewer's bookmark on a post.
func (s *Server) HandleBookmark() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())

		bookmarked, err := s.store.ToggleBookmark(user.ID, params.ByName("id"))
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"bookmarked": bookmarked,
		})
	}
}

// HandleBookmarks handles requests for the posts the viewer bookmarked, in feed order.
func (s *Server) HandleBookmarks() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		user := ctxUser(req.Context())

		snap, err := s.store.Snapshot(user.ID)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		posts := lo.Filter(snap.Posts, func(p Post, _ int) bool {
			return snap.Bookmarks.Has(p.ID)
		})
		s.respondJSON(res, http.StatusOK, newPostPresenters(snap, posts, NowFunc()))
	}
}

// HandleProfile handles requests for a user's profile and their posts, newest first.
func (s *Server) HandleProfile() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		snap, err := s.viewerSnapshot(req)
		if err != nil {
			s.fail(res, req, err)
			return
		}

		user, err := s.store.FindUser(params.ByName("id"))
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		posts, err := s.store.ListPostsByAuthor(user.ID)
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		s.respondJSON(res, http.StatusOK, &profilePresenter{
			User:           *user,
			FollowersLabel: FormatCount(user.Followers),
			FollowedByMe:   snap.Viewer.Follows(user.ID),
			Following:      user.Following.Sorted(),
			Posts: newPostPresenters(snap, lo.Map(posts, func(p *Post, _ int) Post {
				return *p
			}), NowFunc()),
		})
	}
}

// HandleFollow handles requests toggling whether the viewer follows a user. Following someone
// notifies them.
func (s *Server) HandleFollow() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())
		targetID := params.ByName("id")

		following, err := s.store.ToggleFollow(user.ID, targetID)
		if err != nil {
			if errors.Is(err, ErrSelfFollow) {
				s.fail(res, req, BadRequest(err))
				return
			}
			s.fail(res, req, Maybe404(err))
			return
		}

		target, err := s.store.FindUser(targetID)
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}
		if following {
			s.notify(target.ID, user, MsgFollowed)
		}

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"following": following,
			"followers": target.Followers,
		})
	}
}

// HandleCommunities handles requests listing communities, flagging those the viewer joined.
func (s *Server) HandleCommunities() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		communities, err := s.store.ListCommunities(ctxViewerID(req.Context()))
		if err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusOK, communities)
	}
}

// HandleJoinCommunity handles requests toggling the viewer's membership of a community.
func (s *Server) HandleJoinCommunity() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())

		joined, err := s.store.ToggleCommunityJoin(user.ID, params.ByName("id"))
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"joined": joined,
		})
	}
}

// HandleEvents handles requests listing events, flagging those the viewer is going to.
func (s *Server) HandleEvents() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		events, err := s.store.ListEvents(ctxViewerID(req.Context()))
		if err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusOK, events)
	}
}

// HandleRsvp handles requests toggling whether the viewer is going to an event.
func (s *Server) HandleRsvp() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		user := ctxUser(req.Context())

		going, err := s.store.ToggleEventRsvp(user.ID, params.ByName("id"))
		if err != nil {
			s.fail(res, req, Maybe404(err))
			return
		}

		s.respondJSON(res, http.StatusOK, map[string]interface{}{
			"going": going,
		})
	}
}

// HandleNotifications handles requests for the viewer's notifications, oldest first.
func (s *Server) HandleNotifications() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		user := ctxUser(req.Context())

		notifs, err := s.store.ListNotifications(user.ID)
		if err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusOK, notifs)
	}
}

// HandleSettings handles requests replacing the viewer's settings.
func (s *Server) HandleSettings() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		user := ctxUser(req.Context())

		var settings UserSettings
		if err := decodeJSON(res, req, &settings); err != nil {
			s.fail(res, req, err)
			return
		}

		if err := s.store.UpdateSettings(user.ID, settings); err != nil {
			s.fail(res, req, err)
			return
		}
		s.respondJSON(res, http.StatusOK, settings)
	}
}

// viewerSnapshot takes a snapshot for the visitor. A session pointing to a user that no longer
// exists falls back on an anonymous snapshot.
func (s *Server) viewerSnapshot(req *http.Request) (*Snapshot, error) {
	viewerID := ctxViewerID(req.Context())

	snap, err := s.store.Snapshot(viewerID)
	if err != nil && viewerID != "" && Maybe404(err).Is404() {
		s.Logger.Debug().Str("user_id", viewerID).Msg("Session refers to an unknown user, serving anonymously")
		return s.store.Snapshot("")
	}

	return snap, err
}

// rankFeed ranks the home feed of snap, recording how long it took.
func (s *Server) rankFeed(snap *Snapshot, now time.Time) []ranking.Ranked[Post] {
	start := time.Now()
	ranked := snap.RankedFeed(now)
	metrics.ObserveRanking("home", len(ranked), time.Since(start))
	return ranked
}

// notify tells recipientID that actor did something. Acting on one's own content notifies
// nobody. Failures are logged and otherwise ignored.
func (s *Server) notify(recipientID string, actor *User, message string) {
	if recipientID == actor.ID {
		return
	}

	err := s.store.InsertNotification(NewNotification(recipientID, actor.Name, message))
	if err != nil {
		s.Logger.Warn().Err(err).Str("recipient", recipientID).Msg("Failed to insert notification")
		return
	}
	metrics.NotificationSent("activity")
}

// fail responds with the HTTP error matching err, logging server side failures.
func (s *Server) fail(res http.ResponseWriter, req *http.Request, err error) {
	if respondError(res, req, err) {
		s.Logger.Debug().Err(err).Str("path", req.URL.Path).Msg("client error")
		return
	}
	s.Logger.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
}

func (s *Server) respondJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		s.Logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// decodeJSON decodes the request body into v, returning a BadRequestError on malformed input.
func decodeJSON(res http.ResponseWriter, req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(res, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return BadRequest(err)
	}
	return nil
}
