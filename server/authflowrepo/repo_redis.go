package authflowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authflow:"

// RedisRepo keeps flow state in Redis so any instance behind a load
// balancer can complete a sign-in another one started. Expiry is left to
// Redis.
type RedisRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.UniversalClient, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{client: client, ttl: ttl}
}

// NewRedisRepoFromURL connects using a redis:// or rediss:// URL.
func NewRedisRepoFromURL(ctx context.Context, rawURL string, ttl time.Duration) (*RedisRepo, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisRepo(client, ttl), nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = NowTimeFunc()
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+state, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}
	return decodeState(r.client.Get(ctx, redisKeyPrefix+state).Bytes())
}

func (r *RedisRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := r.client.Del(ctx, redisKeyPrefix+state).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Consume uses GETDEL, which needs Redis 6.2 or later.
func (r *RedisRepo) Consume(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}
	return decodeState(r.client.GetDel(ctx, redisKeyPrefix+state).Bytes())
}

func decodeState(payload []byte, err error) (*AuthFlowState, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "auth flow state")
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var authState AuthFlowState
	if err := json.Unmarshal(payload, &authState); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &authState, nil
}
