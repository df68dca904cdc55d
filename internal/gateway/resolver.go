package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/paybridge/internal/cache"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/config"
	credentialdomain "github.com/smallbiznis/paybridge/internal/credential/domain"
	"github.com/smallbiznis/paybridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const clientCacheTTL = 12 * time.Hour

// CredentialSource is the subset of the credential store the resolver needs.
type CredentialSource interface {
	GetActive(ctx context.Context, environment string) (*credentialdomain.Resolved, error)
}

type ResolverParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Creds   credentialdomain.Service
	Metrics *metrics.Metrics        `optional:"true"`
	Latency *metrics.WebhookMetrics `optional:"true"`
}

// Resolver looks up the active credential on every call and reuses one
// client per credential version so the token cache survives across requests.
type Resolver struct {
	creds   CredentialSource
	cfg     config.GatewayConfig
	clock   clock.Clock
	log     *zap.Logger
	options []Option

	mu      sync.Mutex
	clients cache.Cache[string, *Client]
}

func NewResolver(p ResolverParams) *Resolver {
	log := p.Log.Named("gateway.resolver")
	return newResolver(p.Creds, p.Cfg.Gateway, p.Clock, log,
		WithLogger(p.Log.Named("gateway.client")),
		WithMetrics(p.Metrics, p.Latency),
	)
}

func newResolver(creds CredentialSource, cfg config.GatewayConfig, clk clock.Clock, log *zap.Logger, opts ...Option) *Resolver {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		creds:   creds,
		cfg:     cfg,
		clock:   clk,
		log:     log,
		options: opts,
		clients: cache.NewTTLCacheWithClock[string, *Client](clk),
	}
}

func (r *Resolver) Client(ctx context.Context) (API, error) {
	return r.client(ctx)
}

func (r *Resolver) client(ctx context.Context) (*Client, error) {
	resolved, err := r.creds.GetActive(ctx, r.cfg.Environment)
	if err != nil {
		if errors.Is(err, credentialdomain.ErrNotFound) {
			return nil, ErrConfiguration
		}
		return nil, err
	}

	key := resolved.Version()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clients.Get(key); ok {
		return existing, nil
	}

	client, err := NewClient(Config{
		BaseURL:      BaseURLFor(resolved.Environment, r.cfg.BaseURL),
		ClientID:     resolved.ClientID,
		ClientSecret: resolved.ClientSecret,
		Timeout:      r.cfg.HTTPTimeout,
		TokenMargin:  r.cfg.TokenMargin,
	}, r.clock, r.options...)
	if err != nil {
		return nil, err
	}

	r.clients.Set(key, client, clientCacheTTL)
	r.log.Info("gateway client initialised",
		zap.String("credential", resolved.Name),
		zap.String("environment", resolved.Environment),
	)
	return client, nil
}
