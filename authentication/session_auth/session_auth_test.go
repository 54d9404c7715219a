package session_auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
)

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

func TestHandler(t *testing.T) {
	c := qt.New(t)
	h := New("secret", zerolog.Nop())

	c.Run("no cookie means no session", func(c *qt.C) {
		session, err := h.CurrentUser(httptest.NewRequest("GET", "/", nil))
		c.Assert(err, qt.IsNil)
		c.Assert(session, qt.IsNil)
	})

	c.Run("login then read back", func(c *qt.C) {
		rec := httptest.NewRecorder()
		session, err := h.Login(rec, httptest.NewRequest("POST", "/session", nil), "u1")
		c.Assert(err, qt.IsNil)
		c.Assert(session.UserID, qt.Equals, "u1")

		got, err := h.CurrentUser(requestWithCookies(rec))
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Not(qt.IsNil))
		c.Assert(got.UserID, qt.Equals, "u1")
	})

	c.Run("destroy expires the cookie", func(c *qt.C) {
		rec := httptest.NewRecorder()
		_, err := h.Login(rec, httptest.NewRequest("POST", "/session", nil), "u1")
		c.Assert(err, qt.IsNil)

		destroyed := httptest.NewRecorder()
		c.Assert(h.Destroy(destroyed, requestWithCookies(rec)), qt.IsNil)

		cookies := destroyed.Result().Cookies()
		c.Assert(cookies, qt.HasLen, 1)
		c.Assert(cookies[0].MaxAge < 0, qt.IsTrue)
	})

	c.Run("cookie signed with another secret is ignored", func(c *qt.C) {
		other := New("another secret", zerolog.Nop())
		rec := httptest.NewRecorder()
		_, err := other.Login(rec, httptest.NewRequest("POST", "/session", nil), "u1")
		c.Assert(err, qt.IsNil)

		got, err := h.CurrentUser(requestWithCookies(rec))
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.IsNil)
	})
}
