package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyWebhookEvent = "paybridge:webhook:event:%s"

// releaseIfOwner deletes the key only while it still holds our token, so a
// delivery whose lock expired cannot release a newer holder's lock.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var errEmptyEventID = errors.New("event id is empty")

// EventLock is a short-lived per-event mutex shared by every instance behind
// the webhook endpoint.
type EventLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventLock(client *redis.Client, ttl time.Duration) *EventLock {
	return &EventLock{client: client, ttl: ttl}
}

// Acquire returns the owner token when the lock was taken. ok is false when
// another delivery of the same event holds it.
func (l *EventLock) Acquire(ctx context.Context, eventID string) (token string, ok bool, err error) {
	key, err := eventKey(eventID)
	if err != nil {
		return "", false, err
	}
	if l.ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release reports whether the lock was still ours when it was dropped.
func (l *EventLock) Release(ctx context.Context, eventID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	key, err := eventKey(eventID)
	if err != nil {
		return false, err
	}
	deleted, err := releaseIfOwner.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func eventKey(eventID string) (string, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return "", errEmptyEventID
	}
	return fmt.Sprintf(keyWebhookEvent, id), nil
}
