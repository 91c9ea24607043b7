// Package server wires the HTTP API: routing, middleware and graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"igfeed/internal/metrics"
	"igfeed/pkg/auth"
	"igfeed/pkg/config"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/ratelimit"
	"igfeed/pkg/scraper"
	"igfeed/pkg/token"
)

const (
	limiterCleanupInterval = time.Minute
	limiterIdle            = 10 * time.Minute
)

// SessionStore is what the API needs from session persistence
type SessionStore interface {
	Save(s *models.Session) error
	Load(username string) (*models.Session, error)
}

// Deps are the collaborators of the server
type Deps struct {
	Engine   scraper.Engine
	Sessions SessionStore
	Logger   logger.Logger
	// Metrics may be nil to disable /metrics
	Metrics *metrics.Metrics
}

// Server is the HTTP API
type Server struct {
	cfg      config.ServerConfig
	tokens   *token.Issuer
	flow     *auth.Flow
	resolver *auth.Resolver
	service  *scraper.Service
	limiter  *ratelimit.KeyedLimiter
	metrics  *metrics.Metrics
	logger   logger.Logger
	router   chi.Router
}

// New builds a server from the loaded configuration
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Sessions == nil {
		return nil, errors.New("server: engine and session store are required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	limit := rate.Inf
	if cfg.Server.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Server.RequestsPerSecond)
	}

	s := &Server{
		cfg:      cfg.Server,
		tokens:   tokens,
		flow:     auth.NewFlow(deps.Engine, deps.Sessions, tokens, auth.NewPendingTable(cfg.Auth.ChallengeTTL), log),
		resolver: auth.NewResolver(deps.Engine, deps.Sessions, log),
		service:  scraper.New(log),
		limiter:  ratelimit.NewKeyedLimiter(limit, max(cfg.Server.Burst, 1)),
		metrics:  deps.Metrics,
		logger:   log,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.LogComponentStart(s.logger, "http", map[string]interface{}{
			"address": ln.Addr().String(),
			"debug":   s.cfg.Debug,
		})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.LogComponentStop(s.logger, "http", "shutdown")
		return err
	})

	g.Go(func() error {
		s.limiter.RunCleanup(gctx, limiterCleanupInterval, limiterIdle)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := s.flow.Pending().Sweep(); n > 0 {
					s.logger.DebugWithFields("Expired two-factor challenges dropped", map[string]interface{}{"count": n})
				}
			}
		}
	})

	return g.Wait()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID, s.recoverer, s.observe, s.rateLimit)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/alive", s.handleAlive)
	r.Get("/generate/{username}", s.handleGenerate)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(false))
		r.Post("/login", s.handleLogin)
		r.Get("/profile/{username}/{page:[0-9]+}", s.handleProfile)
		r.Get("/profilePicture/{username}", s.handleProfilePicture)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(true))
		r.Get("/story/{username}", s.handleStory)
		r.Get("/highlights/{username}", s.handleHighlights)
		r.Get("/highlights/{username}/{id:[0-9]+}/{page:[0-9]+}", s.handleHighlightPage)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}
