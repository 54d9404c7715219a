package authentication

import (
	"net/http"
)

// An AuthService remembers which mock identity a visitor picked.
type AuthService interface {
	// Login binds userID to the visitor's session.
	Login(res http.ResponseWriter, req *http.Request, userID string) (*Session, error)
	// CurrentUser returns the session of the visitor, or nil if there is none.
	CurrentUser(req *http.Request) (*Session, error)
	// Destroy drops the visitor's session.
	Destroy(res http.ResponseWriter, req *http.Request) error
}

// A Session is what gets stored in the cookie.
type Session struct {
	UserID string `json:"user_id"`
}
