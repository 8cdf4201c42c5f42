// Package server exposes the gatekeeper over HTTP: Slack callbacks, a small
// JSON admin API, health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/metrics"
	"tasnim.dev/cloud-gatekeeper/internal/notify"
	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

// Gatekeeper is the set of operations served over HTTP.
// *orchestrator.Orchestrator satisfies it.
type Gatekeeper interface {
	Decide(ctx context.Context, in orchestrator.DecideInput) (*access.AccessRequest, error)
	Intake(ctx context.Context, requesterID, message string) (*access.AccessRequest, error)
	ListPending(ctx context.Context, viewerID string) ([]*access.AccessRequest, error)
	ListUnprovisioned(ctx context.Context, viewerID string) ([]orchestrator.Unprovisioned, error)
}

type Server struct {
	gk            Gatekeeper
	chat          notify.Chat
	metrics       *metrics.Metrics
	signingSecret string
	apiToken      string
	log           zerolog.Logger
}

type Option func(*Server)

// WithSigningSecret enables Slack request signature verification.
func WithSigningSecret(secret string) Option {
	return func(s *Server) { s.signingSecret = secret }
}

// WithAPIToken requires a bearer token on the JSON API.
func WithAPIToken(token string) Option {
	return func(s *Server) { s.apiToken = token }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a server. chat is used to reply to Slack users.
func New(gk Gatekeeper, chat notify.Chat, opts ...Option) *Server {
	s := &Server{gk: gk, chat: chat, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/slack", func(r chi.Router) {
		r.Use(s.verifySlack)
		r.Post("/interactions", s.handleInteraction)
		r.Post("/events", s.handleEvent)
	})

	r.Route("/access-requests", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/", s.createRequest)
		r.Get("/pending", s.listPending)
		r.Get("/unprovisioned", s.listUnprovisioned)
		r.Post("/{id}/decision", s.decide)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With().Str("http_request_id", middleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(logging.WithContext(r.Context(), log))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
