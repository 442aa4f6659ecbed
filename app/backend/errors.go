package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrUnreachable means the backend refused or dropped the connection.
	ErrUnreachable = errors.New("payments backend unreachable")
	// ErrTimeout means the backend did not answer within the call's deadline.
	ErrTimeout = errors.New("payments backend timed out")
)

// APIError is a non-2xx response from the payments backend. The body is kept
// verbatim so the backend's error semantics survive the hop.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payments backend returned status %d: %s", e.StatusCode, string(e.Body))
}

// JSONBody returns the backend body when it is valid JSON, or a synthesized
// error envelope when it is not.
func (e *APIError) JSONBody() json.RawMessage {
	return normalizeJSONBody(e.Body)
}

func normalizeJSONBody(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	synthesized, _ := json.Marshal(map[string]string{
		"error":        "backend_error",
		"raw_response": string(body),
	})
	return synthesized
}

// classifyTransportError maps a transport-level failure onto the error
// taxonomy. HTTP responses with error statuses never reach this path.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
