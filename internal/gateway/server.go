// Package gateway exposes the outbound HTTP API: message sending, chat
// presence and the pairing QR page.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wagateway/internal/domain"
	"wagateway/internal/metrics"
	"wagateway/internal/session"
)

const maxBodySize = 1 << 20 // 1MB

// SessionView is the read side of the session state.
type SessionView interface {
	domain.TokenSource
	Status() session.Status
}

type Config struct {
	Port      int
	Token     string
	Messenger domain.Messenger
	Session   SessionView
	// Metrics mounts /metrics when non-nil.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server serves the gateway HTTP API.
type Server struct {
	port      int
	token     string
	messenger domain.Messenger
	session   SessionView
	metrics   http.Handler
	logger    *slog.Logger
	server    *http.Server
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		port:      cfg.Port,
		token:     cfg.Token,
		messenger: cfg.Messenger,
		session:   cfg.Session,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /chat/state", s.handleChatState)
	mux.HandleFunc("GET /qr", s.handleQR)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return s.withRequestLog(mux)
}

// Run listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("gateway listening", "port", s.port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}
}

// authorize checks the Bearer credential against the shared secret.
func (s *Server) authorize(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return domain.ErrMissingCredential
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return domain.ErrInvalidCredential
	}
	return nil
}

func (s *Server) rejectAuth(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidCredential) {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	writeError(w, http.StatusUnauthorized, "Missing authorization token.")
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.OutboundCommands(op, result).Inc()
}
