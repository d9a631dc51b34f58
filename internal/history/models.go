package history

import (
	"time"

	"deployhook/internal/deployment"
)

// InvocationRecord is one authenticated delivery in the audit log.
// Script output is never stored.
type InvocationRecord struct {
	ID              int64     `json:"id"`
	InvocationID    string    `json:"invocation_id"`
	DeliveryID      *string   `json:"delivery_id,omitempty"`
	Service         string    `json:"service"`
	Ref             string    `json:"ref"`
	CommitHash      *string   `json:"commit,omitempty"`
	Status          string    `json:"status"` // success, failed, timed_out, error, skipped, rejected
	ExitCode        *int      `json:"exit_code,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	ErrorMessage    *string   `json:"error,omitempty"`
}

// ServiceStatus is the body of the status endpoint.
type ServiceStatus struct {
	Service string             `json:"service"`
	Latest  *InvocationRecord  `json:"latest"`
	Recent  []InvocationRecord `json:"recent"`
}

// NewRecord converts an outcome into an audit record.
func NewRecord(o deployment.Outcome, deliveryID string) *InvocationRecord {
	record := &InvocationRecord{
		InvocationID: o.InvocationID,
		DeliveryID:   stringPtrOrNil(deliveryID),
		Service:      o.Service,
		Ref:          o.Ref,
		CommitHash:   stringPtrOrNil(o.Commit),
		Status:       o.Kind.String(),
		StartedAt:    o.StartedAt,
	}

	if o.Result != nil {
		exitCode := o.Result.ExitCode
		record.ExitCode = &exitCode
	}
	if o.Duration > 0 {
		seconds := o.Duration.Seconds()
		record.DurationSeconds = &seconds
	}
	if o.Err != nil {
		msg := o.Err.Error()
		record.ErrorMessage = &msg
	}

	return record
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
