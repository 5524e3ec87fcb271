// Package httpapi implements the ingress HTTP server: POST /status,
// GET /status, and a liveness probe, routed through chi with a
// go-chi/httprate limiter guarding the write path from a runaway primary.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	streamguarderrors "github.com/ausocean-mirror/streamguard/internal/errors"
	"github.com/ausocean-mirror/streamguard/pkg/models"
)

const maxBodyBytes = 64 * 1024 // 64 KiB

// RecordAppender is the write side of the heartbeat record store.
type RecordAppender interface {
	Append(report models.HeartbeatReport)
}

// StatusView is the read side of the record store the GET handler needs:
// the current window. The engine's derived state comes from EngineView.
type StatusView interface {
	LastN(n int) []models.HeartbeatReport
}

// EngineView supplies the decision engine's externally observable state
// for the GET /status response.
type EngineView interface {
	FallbackActive() bool
	LastDecision() (label string, decidedAt time.Time)
}

// Server is the ingress HTTP server.
type Server struct {
	store  RecordAppender
	view   StatusView
	engine EngineView

	token        string
	requireToken bool

	log zerolog.Logger
	srv *http.Server
}

// Config carries the settings needed to build a Server.
type Config struct {
	Bind         string
	Port         string
	Token        string
	RequireToken bool
}

// New builds a Server and its chi router, but does not start listening.
func New(cfg Config, store RecordAppender, view StatusView, engine EngineView, log zerolog.Logger) *Server {
	s := &Server{
		store:        store,
		view:         view,
		engine:       engine,
		token:        cfg.Token,
		requireToken: cfg.RequireToken,
		log:          log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Get("/healthz", s.handleHealthz)
	r.With(httprate.LimitByIP(20, time.Minute)).Post("/status", s.handlePostStatus)
	r.Get("/status", s.handleGetStatus)

	s.srv = &http.Server{
		Addr:    cfg.Bind + ":" + cfg.Port,
		Handler: r,
	}
	return s
}

// ListenAndServe starts accepting connections; it blocks until the server
// stops (normally via Shutdown), and returns http.ErrServerClosed on a
// graceful stop.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("listening")
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting new connections and gives in-flight requests up
// to the provided deadline to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// authenticate enforces the bearer-token policy: if a token is configured,
// every request other than GET /healthz must carry it; if requireToken is
// false and no token is configured, authentication is skipped entirely.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if s.token == "" && !s.requireToken {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("Authorization")
		if got != "Bearer "+s.token || s.token == "" {
			s.writeError(w, http.StatusUnauthorized, streamguarderrors.AuthFailure, fmt.Errorf("missing or mismatched bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req models.StatusPostRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			s.writeError(w, http.StatusRequestEntityTooLarge, streamguarderrors.PayloadTooLarge, fmt.Errorf("body exceeds 64 KiB"))
			return
		}
		s.writeError(w, http.StatusBadRequest, streamguarderrors.MalformedRequest, err)
		return
	}

	now := time.Now()
	id := uuid.New()
	report := models.HeartbeatReport{
		ID:                     id,
		ReceivedAt:             now,
		ReportedAt:             req.ReportedAt,
		StreamingActive:        req.StreamingActive,
		FFmpegRunning:          req.FFmpegRunning,
		DayWindowActive:        req.DayWindowActive,
		CameraSignalAvailable:  req.CameraSignalAvailable,
		CameraNetworkReachable: req.CameraNetworkReachable,
		LastError:              req.LastError,
		SourceAddress:          r.RemoteAddr,
		HostLoad:               req.HostLoad,
		Config:                 req.Config,
		Extra:                  req.Extra,
	}
	s.store.Append(report)

	s.writeJSON(w, http.StatusOK, models.StatusPostResponse{OK: true, ReceivedAt: now, ID: id})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	records := s.view.LastN(512)
	fallbackActive := false
	var label string
	var decidedAt time.Time
	if s.engine != nil {
		fallbackActive = s.engine.FallbackActive()
		label, decidedAt = s.engine.LastDecision()
	}

	s.writeJSON(w, http.StatusOK, models.StatusGetResponse{
		Records:        records,
		FallbackActive: fallbackActive,
		LastDecision:   label,
		DecidedAt:      decidedAt,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response body")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind streamguarderrors.Kind, err error) {
	s.log.Warn().Err(streamguarderrors.New(kind, err)).Str("kind", string(kind)).Msg("request rejected")
	s.writeJSON(w, status, map[string]string{"error": string(kind)})
}
