package deployment

import (
	"time"

	"deployhook/internal/webhook"
)

// Kind classifies how a delivery was handled.
type Kind int

const (
	// Success means the script exited 0.
	Success Kind = iota
	// AuthFailure means the signature did not verify. Nothing was run.
	AuthFailure
	// Filtered means the push was for another branch. Nothing was run.
	Filtered
	// DeployFailure means the script exited nonzero.
	DeployFailure
	// Timeout means the script was killed at its deadline.
	Timeout
	// InvocationError covers everything else: bad JSON, spawn failure, panics.
	InvocationError
	// Busy means an exclusive service was already deploying.
	Busy
)

// String returns the status name used in logs and the audit log.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthFailure:
		return "unauthorized"
	case Filtered:
		return "skipped"
	case DeployFailure:
		return "failed"
	case Timeout:
		return "timed_out"
	case InvocationError:
		return "error"
	case Busy:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome describes one handled delivery.
type Outcome struct {
	Kind         Kind
	Service      string
	Branch       string
	Ref          string
	Commit       string
	InvocationID string
	StartedAt    time.Time
	Duration     time.Duration

	// Result is set when the script ran, including on timeout.
	Result *Result

	// Err is set for InvocationError.
	Err error
}

// Authenticated reports whether the delivery passed signature verification.
func (o Outcome) Authenticated() bool {
	return o.Kind != AuthFailure
}

// ExpectedRef is the ref the service deploys from.
func (o Outcome) ExpectedRef() string {
	return webhook.BranchRef(o.Branch)
}
