package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	tokenPath             = "/v1/oauth2/token"
	defaultTokenExpiresIn = 3600
	minTokenMargin        = 60 * time.Second
)

// TokenCache holds one bearer token. It is either empty or valid until
// expiry, where expiry already has the safety margin subtracted.
type TokenCache struct {
	baseURL      string
	clientID     string
	clientSecret string
	margin       time.Duration

	httpClient *http.Client
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenCache(baseURL, clientID, clientSecret string, margin time.Duration, httpClient *http.Client, clk clock.Clock) *TokenCache {
	if margin < minTokenMargin {
		margin = minTokenMargin
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TokenCache{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		margin:       margin,
		httpClient:   httpClient,
		clock:        clk,
		log:          zap.NewNop(),
	}
}

// Token returns the cached token or performs one client-credentials exchange.
// A failed exchange leaves the cache untouched.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.token != "" && now.Before(t.expiry) {
		return t.token, nil
	}

	token, expiresIn, err := t.exchange(ctx)
	if err != nil {
		t.metrics.RecordTokenRefresh(ctx, "failure")
		return "", err
	}

	t.token = token
	t.expiry = now.Add(t.usableLifetime(expiresIn))
	t.metrics.RecordTokenRefresh(ctx, "success")
	t.log.Debug("gateway token refreshed", zap.Time("expiry", t.expiry))
	return t.token, nil
}

// usableLifetime is the token lifetime minus the margin. A lifetime that
// does not outlast the margin is cached for half of it instead, so short
// tokens are still reused.
func (t *TokenCache) usableLifetime(expiresIn int64) time.Duration {
	lifetime := time.Duration(expiresIn) * time.Second
	if lifetime > t.margin {
		return lifetime - t.margin
	}
	t.log.Warn("gateway token lifetime shorter than refresh margin",
		zap.Int64("expires_in", expiresIn),
		zap.Duration("margin", t.margin),
	)
	return lifetime / 2
}

// Invalidate drops the cached token so the next call exchanges again.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiry = time.Time{}
}

// Expiry reports the current expiry and whether a token is cached.
func (t *TokenCache) Expiry() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry, t.token != ""
}

func (t *TokenCache) exchange(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, &TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", 0, &TransportError{Op: "token", Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", 0, &GatewayError{Op: "token", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, &GatewayError{Op: "token", StatusCode: resp.StatusCode, Body: string(body)}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", 0, &GatewayError{Op: "token", StatusCode: resp.StatusCode, Body: "empty access_token"}
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenExpiresIn
	}
	return payload.AccessToken, expiresIn, nil
}
