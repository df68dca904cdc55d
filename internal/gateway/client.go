package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/observability/metrics"
	"github.com/smallbiznis/paybridge/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	LiveBaseURL    = "https://api-m.paypal.com"
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"

	maxResponseBytes = 1 << 20
	requestIDHeader  = "PayPal-Request-Id"
)

// API is the set of gateway operations the rest of the module depends on.
//
//go:generate mockgen -destination=mock/mock_api.go -package=mock github.com/smallbiznis/paybridge/internal/gateway API,Provider
type API interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest, requestID string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string, requestID string) (*Order, error)
	AuthorizeOrder(ctx context.Context, orderID string, requestID string) (*Order, error)
	CaptureAuthorization(ctx context.Context, authorizationID string, req CaptureAuthorizationRequest, requestID string) (*Capture, error)
	Refund(ctx context.Context, captureID string, req RefundRequest, requestID string) (*Refund, error)
	GetCapture(ctx context.Context, captureID string) (*Capture, error)
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	CreateWebhook(ctx context.Context, callbackURL string, eventTypes []string) (*Webhook, error)
	UpdateWebhookEvents(ctx context.Context, webhookID string, eventTypes []string) (*Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	VerifySignature(ctx context.Context, req VerifySignatureRequest) (string, error)
}

// Provider hands out a client bound to the currently active credential.
type Provider interface {
	Client(ctx context.Context) (API, error)
}

// Config is an explicitly resolved credential plus transport settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	TokenMargin  time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	log        *zap.Logger
	metrics    *metrics.Metrics
	latency    *metrics.WebhookMetrics
	tracer     trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics, latency *metrics.WebhookMetrics) Option {
	return func(c *Client) {
		c.metrics = m
		c.latency = latency
	}
}

// BaseURLFor picks the API host for an environment. A non-empty override wins.
func BaseURLFor(environment, override string) string {
	if override = strings.TrimRight(strings.TrimSpace(override), "/"); override != "" {
		return override
	}
	if config.NormalizeGatewayEnv(environment) == config.GatewayEnvLive {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

func NewClient(cfg Config, clk clock.Clock, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, ErrConfiguration
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        zap.NewNop(),
		tracer:     otel.Tracer("paybridge/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tokens = NewTokenCache(baseURL, cfg.ClientID, cfg.ClientSecret, cfg.TokenMargin, c.httpClient, clk)
	c.tokens.log = c.log.Named("token")
	c.tokens.metrics = c.metrics
	return c, nil
}

// Tokens exposes the client's token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, requestID string) (*Order, error) {
	if len(req.PurchaseUnits) == 0 {
		return nil, ErrInvalidRequest
	}
	if req.Intent == "" {
		req.Intent = IntentCapture
	}
	var order Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", req, requestID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	path, err := pathWithID("/v2/checkout/orders/%s", orderID)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := c.do(ctx, "get_order", http.MethodGet, path, nil, "", &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string, requestID string) (*Order, error) {
	path, err := pathWithID("/v2/checkout/orders/%s/capture", orderID)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := c.do(ctx, "capture_order", http.MethodPost, path, struct{}{}, requestID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) AuthorizeOrder(ctx context.Context, orderID string, requestID string) (*Order, error) {
	path, err := pathWithID("/v2/checkout/orders/%s/authorize", orderID)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := c.do(ctx, "authorize_order", http.MethodPost, path, struct{}{}, requestID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CaptureAuthorization(ctx context.Context, authorizationID string, req CaptureAuthorizationRequest, requestID string) (*Capture, error) {
	path, err := pathWithID("/v2/payments/authorizations/%s/capture", authorizationID)
	if err != nil {
		return nil, err
	}
	var capture Capture
	if err := c.do(ctx, "capture_authorization", http.MethodPost, path, req, requestID, &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

func (c *Client) Refund(ctx context.Context, captureID string, req RefundRequest, requestID string) (*Refund, error) {
	path, err := pathWithID("/v2/payments/captures/%s/refund", captureID)
	if err != nil {
		return nil, err
	}
	var refund Refund
	if err := c.do(ctx, "refund", http.MethodPost, path, req, requestID, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) GetCapture(ctx context.Context, captureID string) (*Capture, error) {
	path, err := pathWithID("/v2/payments/captures/%s", captureID)
	if err != nil {
		return nil, err
	}
	var capture Capture
	if err := c.do(ctx, "get_capture", http.MethodGet, path, nil, "", &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var list webhookList
	if err := c.do(ctx, "list_webhooks", http.MethodGet, "/v1/notifications/webhooks", nil, "", &list); err != nil {
		return nil, err
	}
	return list.Webhooks, nil
}

func (c *Client) CreateWebhook(ctx context.Context, callbackURL string, eventTypes []string) (*Webhook, error) {
	if strings.TrimSpace(callbackURL) == "" || len(eventTypes) == 0 {
		return nil, ErrInvalidRequest
	}
	body := Webhook{URL: callbackURL, EventTypes: eventTypesFor(eventTypes)}
	var webhook Webhook
	if err := c.do(ctx, "create_webhook", http.MethodPost, "/v1/notifications/webhooks", body, "", &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (c *Client) UpdateWebhookEvents(ctx context.Context, webhookID string, eventTypes []string) (*Webhook, error) {
	path, err := pathWithID("/v1/notifications/webhooks/%s", webhookID)
	if err != nil {
		return nil, err
	}
	if len(eventTypes) == 0 {
		return nil, ErrInvalidRequest
	}
	patch := []patchOperation{{
		Op:    "replace",
		Path:  "/event_types",
		Value: eventTypesFor(eventTypes),
	}}
	var webhook Webhook
	if err := c.do(ctx, "update_webhook", http.MethodPatch, path, patch, "", &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	path, err := pathWithID("/v1/notifications/webhooks/%s", webhookID)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete_webhook", http.MethodDelete, path, nil, "", nil)
}

// VerifySignature returns the gateway's verification_status verbatim.
func (c *Client) VerifySignature(ctx context.Context, req VerifySignatureRequest) (string, error) {
	var resp verifySignatureResponse
	if err := c.do(ctx, "verify_signature", http.MethodPost, "/v1/notifications/verify-webhook-signature", req, "", &resp); err != nil {
		return "", err
	}
	return resp.VerificationStatus, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, requestID string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("gateway.operation", op),
		attribute.String("http.method", method),
	)...)
	defer func() {
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, op)
		}
		span.End()
	}()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency.ObserveGatewayRequest(op, time.Since(start))
	if err != nil {
		c.metrics.RecordGatewayRequest(ctx, op, 0)
		c.log.Warn("gateway request failed", zap.String("operation", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordGatewayRequest(ctx, op, resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		c.log.Warn("gateway returned error",
			zap.String("operation", op),
			zap.Int("status_code", resp.StatusCode),
		)
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(payload)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func pathWithID(format, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidRequest
	}
	return fmt.Sprintf(format, url.PathEscape(id)), nil
}
