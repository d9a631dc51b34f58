package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"deployhook/internal/deployment"
	"deployhook/internal/history"
	"deployhook/internal/service"
	"deployhook/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	HTTPReadTimeout = 10 * time.Second
	HTTPIdleTimeout = 60 * time.Second

	// ResponseMargin is added to the longest service timeout for the HTTP
	// write deadline and the shutdown grace period.
	ResponseMargin = 30 * time.Second

	// DefaultWebhookRateLimit is webhook requests per minute per client IP.
	DefaultWebhookRateLimit = 30
)

// Server represents the HTTP server
type Server struct {
	Registry    *service.Registry
	Verifier    *webhook.Verifier
	History     *history.History // nil disables the audit log
	LockManager *deployment.LockManager
	Logger      *slog.Logger

	// SecretEnv is removed from the environment of deployment scripts.
	SecretEnv string

	// RateLimit is webhook requests per minute per client IP. Zero disables it.
	RateLimit int

	// TrustProxy takes the client IP from the last X-Forwarded-For hop.
	// Leave it off unless the server is only reachable through a reverse proxy.
	TrustProxy bool

	// NewInvoker builds the invoker for a service. Tests replace it.
	NewInvoker func(svc *service.Service) deployment.Invoker
}

// NewServer creates a new server instance
func NewServer(registry *service.Registry, verifier *webhook.Verifier, hist *history.History, logger *slog.Logger) *Server {
	s := &Server{
		Registry:    registry,
		Verifier:    verifier,
		History:     hist,
		LockManager: deployment.NewLockManager(),
		Logger:      logger,
		RateLimit:   DefaultWebhookRateLimit,
	}
	s.NewInvoker = s.scriptInvoker
	return s
}

func (s *Server) scriptInvoker(svc *service.Service) deployment.Invoker {
	return deployment.NewScriptInvoker(svc, s.SecretEnv, s.Verifier.Secret())
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.TrustProxy {
		r.Use(TrustedProxy)
	}
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.HandleHealth)
	r.Get("/status/{service}", s.HandleStatus)

	if s.RateLimit > 0 {
		r.With(NewWebhookRateLimitMiddleware(s.RateLimit, s.Logger)).Post("/webhook/{service}", s.HandleWebhook)
	} else {
		r.Post("/webhook/{service}", s.HandleWebhook)
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		}()

		next.ServeHTTP(ww, r)
	})
}

// ResponseTimeout is the longest a webhook response can take.
func (s *Server) ResponseTimeout() time.Duration {
	return s.Registry.MaxTimeout() + ResponseMargin
}

// Start serves HTTP on host:port until ctx is cancelled, then shuts down
// gracefully, letting in-flight deployments finish.
func (s *Server) Start(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: s.ResponseTimeout(),
		IdleTimeout:  HTTPIdleTimeout,
	}

	s.Logger.Info("Starting server", "addr", addr, "services", s.Registry.List())

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.Logger.Info("Shutting down server", "grace", s.ResponseTimeout())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ResponseTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
