package chaupal

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/jhchabran/chaupal/authentication"
	"github.com/jhchabran/chaupal/metrics"
	"github.com/jhchabran/chaupal/ranking"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

//go:embed assets/templates/*.html
var templatesFS embed.FS

// ServerConfig holds the tunables of a Server.
type ServerConfig struct {
	Addr string
	// HotGravity and HotTimebase shape the decay of the explore ranking.
	HotGravity  float64
	HotTimebase float64
}

// A PostHook is called after a post has been stored. Hooks failing don't fail the request.
type PostHook func(post *Post) error

type namedPostHook struct {
	name string
	hook PostHook
}

type Server struct {
	Logger          zerolog.Logger
	config          *ServerConfig
	store           Store
	router          *httprouter.Router
	done            chan struct{}
	idleConnsClosed chan struct{}
	authService     authentication.AuthService
	postHooks       []namedPostHook
	templates       *template.Template
}

func NewServer(config *ServerConfig, logger zerolog.Logger, store Store, authService authentication.AuthService) *Server {
	if config.HotGravity <= 0 {
		config.HotGravity = ranking.DefaultGravity
	}
	if config.HotTimebase <= 0 {
		config.HotTimebase = ranking.DefaultTimebase
	}

	return &Server{
		config:          config,
		store:           store,
		authService:     authService,
		router:          httprouter.New(),
		Logger:          logger,
		done:            make(chan struct{}),
		idleConnsClosed: make(chan struct{}),
	}
}

// AddPostHook registers hook under name, which labels its failures in logs and metrics.
func (s *Server) AddPostHook(name string, hook PostHook) {
	s.postHooks = append(s.postHooks, namedPostHook{name: name, hook: hook})
}

func (s *Server) Prepare() error {
	err := s.store.Connect()
	if err != nil {
		return err
	}

	s.templates, err = template.New("index.html").Funcs(helpers).ParseFS(templatesFS, "assets/templates/*.html")
	if err != nil {
		return err
	}

	// routes open to visitors without a session
	withMiddlewares(func(m middleware) {
		s.handle("GET", "/", m(s.HandleIndex()))
		s.handle("POST", "/session", m(s.HandleLogin()))
		s.handle("DELETE", "/session", m(s.HandleLogout()))
		s.handle("GET", "/api/users", m(s.HandleUsers()))
		s.handle("GET", "/api/feed", m(s.HandleFeed()))
		s.handle("GET", "/api/explore", m(s.HandleExplore()))
		s.handle("GET", "/api/posts/:id", m(s.HandlePost()))
		s.handle("GET", "/api/users/:id", m(s.HandleProfile()))
		s.handle("GET", "/api/communities", m(s.HandleCommunities()))
		s.handle("GET", "/api/events", m(s.HandleEvents()))
	},
		s.loadSessionMiddleware(),
	)

	// routes acting on behalf of the viewer
	withMiddlewares(func(m middleware) {
		s.handle("POST", "/api/posts", m(s.HandleCreatePost()))
		s.handle("POST", "/api/posts/:id/comments", m(s.HandleCreateComment()))
		s.handle("POST", "/api/posts/:id/like", m(s.HandleLike()))
		s.handle("POST", "/api/posts/:id/bookmark", m(s.HandleBookmark()))
		s.handle("GET", "/api/bookmarks", m(s.HandleBookmarks()))
		s.handle("POST", "/api/users/:id/follow", m(s.HandleFollow()))
		s.handle("POST", "/api/communities/:id/join", m(s.HandleJoinCommunity()))
		s.handle("POST", "/api/events/:id/rsvp", m(s.HandleRsvp()))
		s.handle("GET", "/api/notifications", m(s.HandleNotifications()))
		s.handle("PUT", "/api/settings", m(s.HandleSettings()))
	},
		s.loadSessionMiddleware(),
		s.loadUserMiddleware(),
	)

	s.router.Handler("GET", "/metrics", metrics.Handler())

	return nil
}

// handle registers h on the router, recording its traffic under the route path.
func (s *Server) handle(method string, path string, h httprouter.Handle) {
	s.router.Handle(method, path, s.observe(path)(h))
}

func (s *Server) Start() error {
	httpServer := http.Server{Addr: s.config.Addr, Handler: s}

	go func() {
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("HTTP server stopped")
		}
	}()
	s.Logger.Info().Str("addr", s.config.Addr).Msg("Listening")

	<-s.done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	close(s.idleConnsClosed)

	return nil
}

func (s *Server) Stop() {
	close(s.done)
	<-s.idleConnsClosed
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(res, req)
}
