package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	credentialdomain "github.com/smallbiznis/paybridge/internal/credential/domain"
	"github.com/smallbiznis/paybridge/internal/gateway"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	webhookdomain "github.com/smallbiznis/paybridge/internal/webhook/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	var gwErr *gateway.GatewayError
	var transportErr *gateway.TransportError

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, webhookdomain.ErrMalformedPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "malformed_payload",
			Message: "malformed webhook payload",
		}
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature could not be verified",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, credentialdomain.ErrAlreadyExists),
		errors.Is(err, orderdomain.ErrOrderNotApproved),
		errors.Is(err, webhookdomain.ErrEndpointNotSynced):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, gateway.ErrConfiguration),
		errors.Is(err, credentialdomain.ErrEncryptionKeyMissing),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payment gateway is not configured",
		}
	case errors.As(err, &gwErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: gatewayErrorMessage(gwErr),
		}
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unreachable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code
// fields. The code is the leading sentinel text, never upstream detail.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := err.Error()
	if idx := strings.IndexAny(code, ": "); idx > 0 {
		code = code[:idx]
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, credentialdomain.ErrInvalidName),
		errors.Is(err, credentialdomain.ErrInvalidEnvironment),
		errors.Is(err, credentialdomain.ErrInvalidCredential),
		errors.Is(err, orderdomain.ErrInvalidRequest),
		errors.Is(err, orderdomain.ErrInvalidReference),
		errors.Is(err, orderdomain.ErrInvalidAmount),
		errors.Is(err, webhookdomain.ErrInvalidRequest),
		errors.Is(err, webhookdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, gateway.ErrInvalidRequest):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, webhookdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrTargetNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		credentialdomain.ErrInvalidName,
		credentialdomain.ErrInvalidEnvironment,
		credentialdomain.ErrInvalidCredential,
		orderdomain.ErrInvalidReference,
		orderdomain.ErrInvalidAmount,
		webhookdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "invalid_request"
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_credential":
		return "credential"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// validationErrorMessage surfaces validator detail carried after the
// sentinel ("invalid_request: Key: ...").
func validationErrorMessage(err error, code string) string {
	msg := err.Error()
	if prefix := code + ": "; strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, credentialdomain.ErrAlreadyExists):
		return "credential already exists"
	case errors.Is(err, orderdomain.ErrOrderNotApproved):
		return "gateway order is not approved"
	case errors.Is(err, webhookdomain.ErrEndpointNotSynced):
		return "endpoint is not registered on the gateway"
	default:
		return "conflict"
	}
}

func gatewayErrorMessage(err *gateway.GatewayError) string {
	if err.StatusCode > 0 {
		return "payment gateway returned " + strings.ToLower(http.StatusText(err.StatusCode))
	}
	return "payment gateway error"
}
