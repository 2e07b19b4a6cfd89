package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "auth:login:failures:"

// LoginThrottle counts failed logins per client IP in a fixed Redis window.
// A nil *LoginThrottle is valid and never throttles.
type LoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration) *LoginThrottle {
	if client == nil || maxAttempts <= 0 || window <= 0 {
		return nil
	}
	return &LoginThrottle{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (t *LoginThrottle) Check(ctx context.Context, clientIP string) error {
	if t == nil || clientIP == "" {
		return nil
	}
	count, err := t.client.Get(ctx, throttleKeyPrefix+clientIP).Int()
	if err != nil {
		// missing key or cache outage: never block a login on it
		return nil
	}
	if count >= t.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (t *LoginThrottle) Fail(ctx context.Context, clientIP string) error {
	if t == nil || clientIP == "" {
		return nil
	}
	key := throttleKeyPrefix + clientIP
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr failures: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return fmt.Errorf("expire failures: %w", err)
		}
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, clientIP string) {
	if t == nil || clientIP == "" {
		return
	}
	_ = t.client.Del(ctx, throttleKeyPrefix+clientIP).Err()
}
