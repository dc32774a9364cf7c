// Package server provides a lightweight HTTP analytics server that exposes
// the miner's live status and a simple dashboard.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/logger"
)

// MinerStatus is the live status document served by the API. It is a
// plain copy; the server never touches miner-owned state directly.
type MinerStatus struct {
	Account         string    `json:"account"`
	Running         bool      `json:"running"`
	Mining          bool      `json:"mining"`
	Live            bool      `json:"live"`
	Channel         string    `json:"channel,omitempty"`
	Game            string    `json:"game,omitempty"`
	Drop            string    `json:"drop,omitempty"`
	Progress        float64   `json:"progress"`
	MinutesWatched  int       `json:"minutes_watched"`
	MinutesRequired int       `json:"minutes_required"`
	NextDrop        string    `json:"next_drop,omitempty"`
	NextGame        string    `json:"next_game,omitempty"`
	CampaignCount   int       `json:"campaign_count"`
	ClaimedDrops    int       `json:"claimed_drops"`
	TotalDrops      int       `json:"total_drops"`
	GamesOnHold     int       `json:"games_on_hold"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusFunc returns the current miner status. Implementations must be
// safe to call from any goroutine.
type StatusFunc func() MinerStatus

// AnalyticsServer serves the dashboard and JSON API endpoints.
type AnalyticsServer struct {
	addr string
	log  *logger.Logger
	srv  *http.Server

	mu         sync.RWMutex
	statusFunc StatusFunc
}

// NewAnalyticsServer creates a new AnalyticsServer bound to the given address.
func NewAnalyticsServer(addr string, log *logger.Logger) *AnalyticsServer {
	s := &AnalyticsServer{
		addr: addr,
		log:  log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleDashboard)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           withLogging(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// SetStatusFunc sets the function that returns the miner status. Thread-safe.
func (s *AnalyticsServer) SetStatusFunc(fn StatusFunc) {
	s.mu.Lock()
	s.statusFunc = fn
	s.mu.Unlock()
}

// getStatus returns the current miner status. Thread-safe.
func (s *AnalyticsServer) getStatus() MinerStatus {
	s.mu.RLock()
	fn := s.statusFunc
	s.mu.RUnlock()
	if fn != nil {
		return fn()
	}
	return MinerStatus{}
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *AnalyticsServer) Run(ctx context.Context) error {
	s.log.Info("Analytics server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("analytics server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Analytics server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("analytics server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
