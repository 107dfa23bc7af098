// kvstore/redis.go

package kvstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	redisConnectAttempts = 30
	redisMaxBackoff      = 30 * time.Second
)

// Redis is a Store backed by a Redis server. Each key maps to a plain string value.
type Redis struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewRedis accepts a Redis connection string ("redis://..." URL or "hostname:port")
// and returns a store instance. It does not dial; call Initialize for that.
func NewRedis(redisAddr string, log logrus.FieldLogger) *Redis {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a redis:// URL, use it as a plain address.
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &Redis{
		client: client,
		log:    log.WithField("kvstore", "redis"),
	}
}

// Initialize blocks until Redis answers a ping, giving up after
// redisConnectAttempts failures or when ctx is done.
func (r *Redis) Initialize(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for redis")
		case <-timer.C:
		}

		if r.Ping(ctx) {
			r.log.WithField("attempts", attempt).Info("redis reachable")
			return nil
		}
		if attempt == redisConnectAttempts {
			return errors.Errorf("redis unreachable after %d attempts", attempt)
		}

		wait := retryDelay(attempt)
		r.log.WithFields(logrus.Fields{"attempt": attempt, "retry_in": wait}).Warn("redis ping failed")
		timer.Reset(wait)
	}
}

// retryDelay is the pause after the given failed attempt: one second,
// doubling each time, capped at redisMaxBackoff.
func retryDelay(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt && d < redisMaxBackoff; i++ {
		d *= 2
	}
	if d > redisMaxBackoff {
		return redisMaxBackoff
	}
	return d
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis GET %q", key)
	}
	return val, nil
}

// Set stores value under key without expiry.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis SET %q", key)
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *Redis) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.Debugf("ping failed: %v", err)
		return false
	}
	return true
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
