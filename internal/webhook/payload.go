package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RefPrefix is prepended to a branch name in push event refs.
const RefPrefix = "refs/heads/"

// Delivery is one webhook request as received on the wire.
type Delivery struct {
	Body       []byte
	Signature  string
	Event      string
	DeliveryID string
}

// PushPayload holds the push event fields the gateway reads.
// Ref decides whether to deploy; After is only used for logging.
type PushPayload struct {
	Ref   string
	After string
}

// ParsePushPayload decodes body, which must be a JSON object.
// Non-string values for ref or after are treated as absent.
func ParsePushPayload(body []byte) (*PushPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if fields == nil {
		return nil, errors.New("invalid JSON payload: not an object")
	}

	return &PushPayload{
		Ref:   stringField(fields, "ref"),
		After: stringField(fields, "after"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// BranchRef returns the full ref for a branch name.
func BranchRef(branch string) string {
	return RefPrefix + branch
}
