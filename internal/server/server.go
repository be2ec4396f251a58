package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"tradehook/internal/app"
	"tradehook/internal/domain"
	"tradehook/internal/ports"
)

const maxBodyBytes = 1 << 10 // signal bodies are a few dozen bytes

// SignalHandler is the piece of the application the webhook dispatches to.
type SignalHandler interface {
	ProcessSignal(ctx context.Context, sig domain.Signal) app.Result
}

// Server exposes the authenticated webhook endpoint that alerting services
// post BUY/SELL signals to. Authentication happens here, ahead of the core.
type Server struct {
	logger          ports.Logger
	handler         SignalHandler
	secret          string
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// Config holds configuration for the webhook server.
type Config struct {
	ListenAddr      string
	WebhookSecret   string
	Handler         SignalHandler
	Logger          ports.Logger
	ShutdownTimeout time.Duration
}

// New creates the webhook server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for webhook server")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("signal handler is required for webhook server")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret must be set", ports.ErrConfigurationError)
	}
	addr := cfg.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	s := &Server{
		logger:          cfg.Logger,
		handler:         cfg.Handler,
		secret:          cfg.WebhookSecret,
		shutdownTimeout: shutdownTimeout,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleWebhook).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Run serves until the context is canceled or SIGINT/SIGTERM arrives, then
// shuts down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Webhook server listening", map[string]interface{}{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown: %w", err)
	}
	s.logger.Info(context.Background(), "Webhook server stopped")
	return nil
}

// handleWebhook authenticates the request, parses the signal body, and
// dispatches it to the signal processor.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("secret")), []byte(s.secret)) != 1 {
		s.logger.Error(ctx, nil, "Unauthorized webhook access attempt", map[string]interface{}{"remote": r.RemoteAddr})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read webhook body")
		http.Error(w, "Bad format", http.StatusBadRequest)
		return
	}
	raw := strings.TrimSpace(string(body))
	s.logger.Info(ctx, "Webhook received data", map[string]interface{}{"data": raw})

	// Basic health check.
	if strings.EqualFold(raw, "PING") {
		fmt.Fprint(w, "pong")
		return
	}

	sig, err := domain.ParseSignal(raw)
	if err != nil {
		s.logger.Error(ctx, err, "Invalid signal format", map[string]interface{}{"data": raw})
		http.Error(w, "Bad format", http.StatusBadRequest)
		return
	}

	res := s.handler.ProcessSignal(ctx, sig)
	w.WriteHeader(httpStatus(res.Status))
	fmt.Fprint(w, res.Message)
}

// httpStatus maps processor statuses onto HTTP codes. Benign outcomes
// (duplicate BUY, stray SELL) are 200s with an explanatory message.
func httpStatus(status app.Status) int {
	switch status {
	case app.StatusExecuted, app.StatusAlreadyOpen, app.StatusNotOpen:
		return http.StatusOK
	case app.StatusBadFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
