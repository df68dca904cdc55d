package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration means no usable credential is active.
	ErrConfiguration  = errors.New("gateway_not_configured")
	ErrInvalidRequest = errors.New("invalid_request")
)

// GatewayError is a non-2xx response from the gateway.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, truncate(e.Body, 512))
}

// Retryable is true for server-side failures only.
func (e *GatewayError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// TransportError covers timeouts and connection failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Retryable() bool { return true }

// IsRetryable reports whether err is a gateway failure worth retrying by the caller.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}
	var trErr *TransportError
	return errors.As(err, &trErr)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
