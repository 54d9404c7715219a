// Package session_auth stores the picked identity in a signed cookie.
package session_auth

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jhchabran/chaupal/authentication"
	"github.com/rs/zerolog"
)

const sessionKey = "chaupal-session"

type Handler struct {
	sessionStore *sessions.CookieStore
	logger       zerolog.Logger
}

func New(serverSecret string, logger zerolog.Logger) *Handler {
	sessionStore := sessions.NewCookieStore([]byte(serverSecret))
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Handler{
		sessionStore: sessionStore,
		logger:       logger,
	}
}

func (h *Handler) Login(res http.ResponseWriter, req *http.Request, userID string) (*authentication.Session, error) {
	// an undecodable cookie still yields a fresh session, which is all we need here
	session, _ := h.sessionStore.Get(req, sessionKey)

	userSession := &authentication.Session{UserID: userID}
	b, err := json.Marshal(userSession)
	if err != nil {
		return nil, err
	}

	session.Values["user"] = b
	if err := session.Save(req, res); err != nil {
		return nil, err
	}

	h.logger.Debug().Str("user_id", userID).Msg("session created")
	return userSession, nil
}

// CurrentUser returns nil when the visitor has no session. A cookie that cannot be decoded,
// typically signed with a previous server secret, counts as no session.
func (h *Handler) CurrentUser(req *http.Request) (*authentication.Session, error) {
	session, err := h.sessionStore.Get(req, sessionKey)
	if err != nil {
		h.logger.Debug().Err(err).Msg("ignoring undecodable session cookie")
		return nil, nil
	}

	b, ok := session.Values["user"].([]byte)
	if !ok {
		return nil, nil
	}

	var userSession authentication.Session
	if err := json.Unmarshal(b, &userSession); err != nil {
		return nil, err
	}
	if userSession.UserID == "" {
		return nil, nil
	}

	return &userSession, nil
}

func (h *Handler) Destroy(res http.ResponseWriter, req *http.Request) error {
	session, _ := h.sessionStore.Get(req, sessionKey)
	delete(session.Values, "user")
	opts := *session.Options
	opts.MaxAge = -1
	session.Options = &opts
	return session.Save(req, res)
}
