package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paybridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWebhookClient = "paybridge:webhook:client:%s"

// NewRedisClient returns nil when REDIS_ADDR is unset. Every consumer treats
// a nil client as "feature disabled".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}
	return client
}

// WebhookLimiter throttles inbound notifications per client and serializes
// concurrent redeliveries of the same event id.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	lock   *EventLock

	rate  float64
	burst int
}

func NewWebhookLimiter(client *redis.Client, cfg config.Config) *WebhookLimiter {
	if client == nil {
		return &WebhookLimiter{}
	}

	rate := cfg.Webhook.RateLimit
	if rate <= 0 {
		rate = 20
	}
	burst := cfg.Webhook.RateBurst
	if burst <= 0 {
		burst = 40
	}
	lockTTL := cfg.Webhook.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		lock:    NewEventLock(client, lockTTL),
		rate:    rate,
		burst:   burst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) AllowClient(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookClient, strings.TrimSpace(clientIP)), l.rate, l.burst)
}

// TryLockEvent reports ok=true without a token when locking is disabled.
func (l *WebhookLimiter) TryLockEvent(ctx context.Context, eventID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.lock.Acquire(ctx, eventID)
}

func (l *WebhookLimiter) ReleaseEvent(ctx context.Context, eventID, token string) error {
	if !l.Enabled() {
		return nil
	}
	_, err := l.lock.Release(ctx, eventID, token)
	return err
}
