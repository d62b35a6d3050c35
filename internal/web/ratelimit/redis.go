package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// allowScript trims the window, records the attempt when there is room and
// returns {allowed, count, oldest score}. Scores are unix milliseconds.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {allowed, count, oldest[2]}
`)

// Redis shares attempts between server instances through a sorted set per key
type Redis struct {
	client redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedis creates a limiter storing attempts in client
func NewRedis(client redis.UniversalClient, config Config) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Redis{client: client, config: config, now: time.Now}, nil
}

// Allow records an attempt for key if the window has room
func (r *Redis) Allow(ctx context.Context, key string) (*Result, error) {
	now := r.now().UnixMilli()
	window := r.config.Window.Milliseconds()

	raw, err := allowScript.Run(ctx, r.client, []string{r.config.Prefix + key},
		now, window, r.config.Limit, uuid.NewString(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected script result %v", key, raw)
	}

	count := cast.ToInt(raw[1])
	res := &Result{
		Allowed:   cast.ToInt(raw[0]) == 1,
		Limit:     r.config.Limit,
		Remaining: r.config.Limit - count,
	}
	if !res.Allowed {
		oldest, err := cast.ToFloat64E(raw[2])
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: oldest attempt: %w", key, err)
		}
		res.RetryAfter = time.Duration(int64(oldest)+window-now) * time.Millisecond
	}
	return res, nil
}

// Reset forgets key
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.config.Prefix+key).Err()
}
