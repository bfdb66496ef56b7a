package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisRateLimitPrefix = "magiclink:rl:"

// Ventana deslizante sobre un sorted set: score = instante en ms.
// ARGV: now_ms, window_ms, max, member. Devuelve 1 si la solicitud entra.
const redisSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
if redis.call("ZCARD", key) >= tonumber(ARGV[3]) then
  redis.call("PEXPIRE", key, window)
  return 0
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter limita solicitudes de magic link por email entre
// instancias, con la misma ventana deslizante que el limiter en memoria.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	return newRedisRateLimiter(client, window, max)
}

func newRedisRateLimiter(client redisEvaler, window time.Duration, max int) *redisRateLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: redisRateLimitPrefix,
		now:    time.Now,
	}
}

// Allow falla abierto si Redis no responde.
func (l *redisRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	email := normalizeEmail(key)
	if email == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	args := []interface{}{
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.max,
		uuid.NewString(),
	}
	allowed, err := l.client.Eval(ctx, redisSlidingWindowScript, []string{l.prefix + email}, args...).Int()
	if err != nil {
		return true
	}
	return allowed == 1
}
