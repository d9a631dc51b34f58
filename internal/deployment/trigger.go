package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deployhook/internal/service"
	"deployhook/internal/webhook"

	"github.com/google/uuid"
)

// Trigger turns deliveries for one service into deployments.
type Trigger struct {
	Service  *service.Service
	Verifier *webhook.Verifier
	Invoker  Invoker

	// Locks serializes deployments when Service.Exclusive is set.
	Locks *LockManager

	Logger *slog.Logger
}

// NewTrigger creates a trigger for svc.
func NewTrigger(svc *service.Service, verifier *webhook.Verifier, invoker Invoker, locks *LockManager, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		Service:  svc,
		Verifier: verifier,
		Invoker:  invoker,
		Locks:    locks,
		Logger:   logger,
	}
}

// Handle authenticates d, applies the branch filter and runs the deployment.
//
// It blocks until the script exits or the service timeout passes. Cancelling
// ctx does not stop a running deployment; only the timeout does.
func (t *Trigger) Handle(ctx context.Context, d webhook.Delivery) Outcome {
	outcome := Outcome{
		Service:   t.Service.Name,
		Branch:    t.Service.Branch,
		StartedAt: time.Now(),
	}

	if !t.Verifier.Verify(d.Body, d.Signature) {
		t.Logger.Warn("Invalid webhook signature",
			"service", t.Service.Name,
			"delivery", d.DeliveryID)
		outcome.Kind = AuthFailure
		return outcome
	}

	outcome.InvocationID = uuid.NewString()
	logger := t.Logger.With(
		"service", t.Service.Name,
		"invocation", outcome.InvocationID,
		"delivery", d.DeliveryID)

	payload, err := webhook.ParsePushPayload(d.Body)
	if err != nil {
		logger.Error("Failed to parse webhook payload", "error", err)
		outcome.Kind = InvocationError
		outcome.Err = err
		return outcome
	}
	outcome.Ref = payload.Ref
	outcome.Commit = payload.After

	if !t.Service.MatchesRef(payload.Ref) {
		logger.Info("Ignoring push for other ref", "ref", payload.Ref, "expected", outcome.ExpectedRef())
		outcome.Kind = Filtered
		return outcome
	}

	if t.Service.Exclusive && t.Locks != nil {
		if !t.Locks.TryLock(t.Service.Name) {
			logger.Warn("Deployment already in progress, rejecting")
			outcome.Kind = Busy
			return outcome
		}
		defer t.Locks.Unlock(t.Service.Name)
	}

	logger.Info("Starting deployment", "ref", payload.Ref, "commit", payload.After)

	result, err := t.invoke(ctx)
	outcome.Duration = time.Since(outcome.StartedAt)
	outcome.Result = result

	switch {
	case err != nil:
		logger.Error("Deployment error", "error", err)
		outcome.Kind = InvocationError
		outcome.Err = err
	case result == nil:
		logger.Error("Deployment error", "error", "invoker returned no result")
		outcome.Kind = InvocationError
		outcome.Err = fmt.Errorf("invoker returned no result")
	case result.TimedOut:
		logger.Error("Deployment timed out", "timeout", t.Service.Timeout)
		outcome.Kind = Timeout
	case result.ExitCode != 0:
		logger.Warn("Deployment failed",
			"exit_code", result.ExitCode,
			"stderr", truncate(result.Stderr, logOutputLimit))
		outcome.Kind = DeployFailure
	default:
		logger.Info("Deployment completed", "duration_ms", outcome.Duration.Milliseconds())
		outcome.Kind = Success
	}

	return outcome
}

const logOutputLimit = 2048

type invocation struct {
	result *Result
	err    error
}

// invoke runs the invoker under the service timeout. The invoker runs in its
// own goroutine so a hung invoker cannot hold the request past the deadline.
func (t *Trigger) invoke(ctx context.Context) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	if t.Service.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Service.Timeout)
		defer cancel()
	}

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{err: fmt.Errorf("invoker panic: %v", r)}
			}
		}()
		result, err := t.Invoker.Invoke(ctx)
		done <- invocation{result: result, err: err}
	}()

	select {
	case inv := <-done:
		return inv.result, inv.err
	case <-ctx.Done():
		return &Result{ExitCode: -1, TimedOut: true, Duration: t.Service.Timeout}, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
