package chaupal

import (
	"context"
	"net/http"
	"time"

	"github.com/jhchabran/chaupal/authentication"
	"github.com/jhchabran/chaupal/metrics"
	"github.com/julienschmidt/httprouter"
)

// middleware is a convenient type for declaring middlewares.
type middleware func(httprouter.Handle) httprouter.Handle

// contextKey is a type for storing values in each request context.
type contextKey string

// String returns a stringified context key.
func (k contextKey) String() string { return string(k) }

// ctxKeySession is the context key for storing the current user session in a context
var ctxKeySession = contextKey("session")

// ctxKeyUser is the context key for storing the current user record in a context
var ctxKeyUser = contextKey("user")

// ctxSession is a helper func to fetch the user session from the context.
func ctxSession(ctx context.Context) *authentication.Session {
	v, _ := ctx.Value(ctxKeySession).(*authentication.Session)
	return v
}

// ctxViewerID returns the id of the user the visitor picked, or "" if there is none.
func ctxViewerID(ctx context.Context) string {
	if session := ctxSession(ctx); session != nil {
		return session.UserID
	}
	return ""
}

// ctxUser is a helper func to fetch the user record from the context.
func ctxUser(ctx context.Context) *User {
	v, _ := ctx.Value(ctxKeyUser).(*User)
	return v
}

// withMiddlewares is a helper function to declare routes with middlewares more easily.
// The caller declares its routes in the body on the f function, calling f's argument on its
// httprouter.Handle to wrap them.
func withMiddlewares(f func(middleware), middlewares ...middleware) {
	wrapper := func(handle httprouter.Handle) httprouter.Handle {
		h := handle
		for i := len(middlewares) - 1; i >= 0; i-- {
			m := middlewares[i]
			h = m(h)
		}
		return h
	}

	f(wrapper)
}

// loadSessionMiddleware fetches the user session data through the AuthService
// and stores it in the request context. If there's no session it will assign nil in
// the context to the session key.
func (s *Server) loadSessionMiddleware() middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			session, err := s.authService.CurrentUser(r)
			if err != nil {
				s.Logger.Warn().Err(err).Msg("Failed to fetch session data")
				http.Error(w, "Failed to fetch session data", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, session)
			next(w, r.WithContext(ctx), p)
		})
	}
}

// loadUserMiddleware fetches the user of the session from the store and stores it in the
// request context. If there's no session, or if the user it refers to is gone, it halts the
// chain with an unauthorized error.
func (s *Server) loadUserMiddleware() middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			session := ctxSession(r.Context())

			if session == nil {
				s.Logger.Debug().Str("path", r.URL.Path).Msg("Attempt to act with no session, halting middleware chain")
				s.fail(w, r, Unauthorized(r.URL.Path))
				return
			}

			user, err := s.store.FindUser(session.UserID)
			if err != nil {
				if Maybe404(err).Is404() {
					s.Logger.Debug().Str("user_id", session.UserID).Msg("Session refers to an unknown user")
					s.fail(w, r, Unauthorized(r.URL.Path))
					return
				}
				s.Logger.Error().Err(err).Msg("Failed to fetch user from store")
				s.fail(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			next(w, r.WithContext(ctx), p)
		})
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe logs and records metrics for every request served under route.
func (s *Server) observe(route string) middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next(rec, r, p)

			elapsed := time.Since(start)
			metrics.ObserveRequest(route, r.Method, rec.status, elapsed)
			s.Logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", elapsed).
				Msg("request")
		})
	}
}
