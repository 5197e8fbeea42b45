// Package cache provides Redis-backed storage for short-lived server state.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/middleware"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

type metricsHook struct{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Connect opens a Redis client for addr, which is either a redis:// URL or host:port,
// and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const sessionKeyPrefix = "aora:session:"

// RedisSessionStore keeps sessions as JSON values that expire with the session.
type RedisSessionStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionStore constructs a session store on top of client.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

type storedSession struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Save stores the session until its expiry.
func (s *RedisSessionStore) Save(ctx context.Context, session models.Session) error {
	payload, err := json.Marshal(storedSession{
		ID:        session.ID,
		AccountID: session.AccountID,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return auth.ErrSessionExpired
		}
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.Secret, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Find loads a session by its secret.
func (s *RedisSessionStore) Find(ctx context.Context, secret string) (models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+secret).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, auth.ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}

	return models.Session{
		ID:        stored.ID,
		AccountID: stored.AccountID,
		Secret:    secret,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// Delete removes a session by its secret.
func (s *RedisSessionStore) Delete(ctx context.Context, secret string) error {
	removed, err := s.client.Del(ctx, sessionKeyPrefix+secret).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

var _ auth.SessionStore = (*RedisSessionStore)(nil)

// Health adapts a redis client to a health check.
type Health struct {
	Client redis.UniversalClient
}

// Ping reports whether redis answers.
func (h Health) Ping(ctx context.Context) error {
	return h.Client.Ping(ctx).Err()
}
