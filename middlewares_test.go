package chaupal

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/chaupal/authentication"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

func TestWithMiddlewares(t *testing.T) {
	c := qt.New(t)

	handler := func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {}

	c.Run("calls middlewares", func(c *qt.C) {
		s1 := false
		m1 := func(h httprouter.Handle) httprouter.Handle { s1 = true; return h }

		withMiddlewares(func(m middleware) { m(handler) }, m1)
		c.Assert(s1, qt.IsTrue)
	})

	c.Run("passing m1, m2, m3 run them in that order", func(c *qt.C) {
		trace := []int{}
		m1 := func(h httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
				trace = append(trace, 1)
				h(w, r, p)
			}
		}
		m2 := func(h httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
				trace = append(trace, 2)
				h(w, r, p)
			}
		}
		m3 := func(h httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
				trace = append(trace, 3)
				h(w, r, p)
			}
		}

		var h httprouter.Handle
		withMiddlewares(func(m middleware) { h = m(handler) },
			m1,
			m2,
			m3)

		h(httptest.NewRecorder(), &http.Request{}, httprouter.Params{})

		c.Assert(trace, qt.DeepEquals, []int{1, 2, 3})
	})
}

// stubAuth returns a fixed session, or err.
type stubAuth struct {
	session *authentication.Session
	err     error
}

func (a *stubAuth) Login(res http.ResponseWriter, req *http.Request, userID string) (*authentication.Session, error) {
	return &authentication.Session{UserID: userID}, nil
}

func (a *stubAuth) CurrentUser(req *http.Request) (*authentication.Session, error) {
	return a.session, a.err
}

func (a *stubAuth) Destroy(res http.ResponseWriter, req *http.Request) error {
	return nil
}

// stubStore only knows how to find users. Calling anything else panics.
type stubStore struct {
	Store
	users map[string]*User
	err   error
}

func (s *stubStore) FindUser(ID string) (*User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[ID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", ID, ErrNotFound)
	}
	return u, nil
}

func newStubServer(auth authentication.AuthService, store Store) *Server {
	return NewServer(&ServerConfig{}, zerolog.Nop(), store, auth)
}

func TestLoadSessionMiddleware(t *testing.T) {
	c := qt.New(t)

	c.Run("stores the session in the context", func(c *qt.C) {
		s := newStubServer(&stubAuth{session: &authentication.Session{UserID: "u1"}}, nil)

		var got string
		h := s.loadSessionMiddleware()(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			got = ctxViewerID(r.Context())
		})
		h(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)

		c.Assert(got, qt.Equals, "u1")
	})

	c.Run("no session leaves the viewer empty", func(c *qt.C) {
		s := newStubServer(&stubAuth{}, nil)

		called := false
		h := s.loadSessionMiddleware()(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			called = true
			c.Assert(ctxSession(r.Context()), qt.IsNil)
			c.Assert(ctxViewerID(r.Context()), qt.Equals, "")
		})
		h(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)

		c.Assert(called, qt.IsTrue)
	})

	c.Run("session errors halt the chain", func(c *qt.C) {
		s := newStubServer(&stubAuth{err: errors.New("boom")}, nil)

		called := false
		h := s.loadSessionMiddleware()(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			called = true
		})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("GET", "/", nil), nil)

		c.Assert(called, qt.IsFalse)
		c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)
	})
}

func TestLoadUserMiddleware(t *testing.T) {
	c := qt.New(t)
	store := &stubStore{users: map[string]*User{"u1": {ID: "u1", Name: "Asha"}}}

	run := func(s *Server) (*User, int) {
		var got *User
		var h httprouter.Handle
		withMiddlewares(func(m middleware) {
			h = m(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
				got = ctxUser(r.Context())
			})
		}, s.loadSessionMiddleware(), s.loadUserMiddleware())

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("POST", "/api/posts", nil), nil)
		return got, rec.Code
	}

	c.Run("loads the user of the session", func(c *qt.C) {
		user, code := run(newStubServer(&stubAuth{session: &authentication.Session{UserID: "u1"}}, store))
		c.Assert(code, qt.Equals, http.StatusOK)
		c.Assert(user.Name, qt.Equals, "Asha")
	})

	c.Run("no session is unauthorized", func(c *qt.C) {
		user, code := run(newStubServer(&stubAuth{}, store))
		c.Assert(code, qt.Equals, http.StatusUnauthorized)
		c.Assert(user, qt.IsNil)
	})

	c.Run("session of a vanished user is unauthorized", func(c *qt.C) {
		user, code := run(newStubServer(&stubAuth{session: &authentication.Session{UserID: "ghost"}}, store))
		c.Assert(code, qt.Equals, http.StatusUnauthorized)
		c.Assert(user, qt.IsNil)
	})

	c.Run("store failures are internal errors", func(c *qt.C) {
		broken := &stubStore{err: errors.New("connection refused")}
		_, code := run(newStubServer(&stubAuth{session: &authentication.Session{UserID: "u1"}}, broken))
		c.Assert(code, qt.Equals, http.StatusInternalServerError)
	})
}
