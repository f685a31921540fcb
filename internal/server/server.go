// Package server exposes reading sessions over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/session"
	"github.com/verte-zerg/readaid/internal/source"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr     = ":8787"
	shutdownTimeout = 5 * time.Second
	outboxSize      = 32
)

// Config configures the HTTP surface.
type Config struct {
	Addr    string
	Origins []string
}

// Server accepts one reading session per WebSocket connection.
type Server struct {
	cfg      Config
	base     session.Options
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64

	mu       sync.Mutex
	regions  model.RegionSnapshot
	sessions map[string]chan model.RegionSnapshot
}

// New creates a server. base is copied into every new session.
func New(cfg Config, base session.Options, logger zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		base:     base,
		logger:   logger.With().Str("component", "server").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		regions:  base.Regions,
		sessions: map[string]chan model.RegionSnapshot{},
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// SetRegions replaces the region snapshot of every live session and of
// sessions that connect later.
func (s *Server) SetRegions(snap model.RegionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = snap
	for _, updates := range s.sessions {
		offerSnapshot(updates, snap)
	}
}

// openSession starts a session on the current snapshot and registers it for
// region updates. The returned func unregisters it.
func (s *Server) openSession() (*session.Session, func()) {
	updates := make(chan model.RegionSnapshot, 1)
	opts := s.base

	s.mu.Lock()
	opts.Regions = s.regions
	sess := session.New(opts)
	s.sessions[sess.ID()] = updates
	s.mu.Unlock()

	sess.SetRegionUpdates(updates)
	return sess, func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
	}
}

// offerSnapshot keeps only the newest pending snapshot in ch. Callers must be
// the only sender on ch.
func offerSnapshot(ch chan model.RegionSnapshot, snap model.RegionSnapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", s.websocketHandler)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// waits for open sessions to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("forced shutdown")
	}
	s.wg.Wait()
	return nil
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.Origins) == 0 {
		return []string{"*"}
	}
	return s.cfg.Origins
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.Origins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"status":   "ok",
		"sessions": s.active.Load(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write health response")
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.active.Add(1)
	defer s.active.Add(-1)

	stream := source.NewConnStream(conn, s.logger)
	sess, unregister := s.openSession()
	defer sess.Close()
	defer unregister()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	logger := s.logger.With().Str("session", sess.ID()).Logger()
	outbox := make(chan AssistanceMessage, outboxSize)
	go writeLoop(ctx, stream, outbox, logger)
	sess.Subscribe(func(u session.Update) {
		select {
		case outbox <- NewAssistanceMessage(u):
		default:
			logger.Warn().Msg("assistance outbox full, dropping update")
		}
	})

	logger.Info().Str("remote", r.RemoteAddr).Msg("session connected")
	if err := sess.Run(ctx, source.FromStream(stream)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("session ended with error")
		return
	}
	logger.Info().Msg("session disconnected")
}

func writeLoop(ctx context.Context, stream *source.ConnStream, outbox <-chan AssistanceMessage, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			if err := stream.Send(msg); err != nil {
				logger.Debug().Err(err).Msg("failed to push assistance update")
				return
			}
		}
	}
}
