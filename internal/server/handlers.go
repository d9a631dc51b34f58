package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"deployhook/internal/deployment"
	"deployhook/internal/history"
	"deployhook/internal/security"
	"deployhook/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v57/github"
)

const (
	MaxPayloadBytes     = 1_000_000 // 1 MB
	RecentStatusLimit   = 10        // invocations returned by the status endpoint
	historyWriteTimeout = 5 * time.Second
)

// HandleWebhook handles push deliveries for one service.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")

	if err := security.ValidateServiceName(name); err != nil {
		s.Logger.Warn("Invalid service name in webhook request", "service", name, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid service name"})
		return
	}

	svc, err := s.Registry.Get(name)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown service"})
		return
	}

	// ContentLength is -1 when unknown; MaxBytesReader covers that case.
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
			return
		}
		s.Logger.Error("Failed to read request body", "error", err, "service", name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	delivery := webhook.Delivery{
		Body:       body,
		Signature:  r.Header.Get(webhook.SignatureHeader),
		Event:      github.WebHookType(r),
		DeliveryID: github.DeliveryID(r),
	}

	logger := s.Logger.With("request_id", middleware.GetReqID(r.Context()), "event", delivery.Event)
	trigger := deployment.NewTrigger(svc, s.Verifier, s.NewInvoker(svc), s.LockManager, logger)

	outcome := trigger.Handle(r.Context(), delivery)
	s.recordOutcome(logger, outcome, delivery.DeliveryID)

	status, response := outcomeResponse(outcome)
	s.respondJSON(w, status, response)
}

// outcomeResponse maps a deployment outcome to its HTTP status and body.
func outcomeResponse(o deployment.Outcome) (int, map[string]string) {
	switch o.Kind {
	case deployment.Success:
		output := ""
		if o.Result != nil {
			output = o.Result.Stdout
		}
		return http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Deployment completed successfully",
			"output":  output,
		}
	case deployment.AuthFailure:
		return http.StatusForbidden, map[string]string{"error": "Invalid signature"}
	case deployment.Filtered:
		return http.StatusOK, map[string]string{"message": fmt.Sprintf("Not %s branch, ignoring", o.Branch)}
	case deployment.DeployFailure:
		stderr := ""
		if o.Result != nil {
			stderr = o.Result.Stderr
		}
		return http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Deployment failed",
			"error":   stderr,
		}
	case deployment.Timeout:
		return http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Deployment timed out",
		}
	case deployment.Busy:
		return http.StatusTooManyRequests, map[string]string{
			"status":  "error",
			"message": "Deployment already in progress",
		}
	default:
		detail := "unknown error"
		if o.Err != nil {
			detail = o.Err.Error()
		}
		return http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Deployment error: " + detail,
		}
	}
}

// recordOutcome writes authenticated outcomes to the audit log.
// Failures are logged and never affect the response.
func (s *Server) recordOutcome(logger *slog.Logger, o deployment.Outcome, deliveryID string) {
	if s.History == nil || !o.Authenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if _, err := s.History.Record(ctx, history.NewRecord(o, deliveryID)); err != nil {
		logger.Error("Failed to record invocation", "error", err, "service", o.Service)
	}
}

// HandleHealth reports liveness. It never inspects services or scripts.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleStatus returns recent invocations of a service.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")

	if err := security.ValidateServiceName(name); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid service name"})
		return
	}

	if _, err := s.Registry.Get(name); err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown service"})
		return
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "History not enabled"})
		return
	}

	status, err := s.History.GetStatus(r.Context(), name, RecentStatusLimit)
	if err != nil {
		s.Logger.Error("Failed to get invocation history", "error", err, "service", name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployment status"})
		return
	}

	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data, s.Logger)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
