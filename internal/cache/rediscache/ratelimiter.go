package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter — фиксированное окно на INCR+EXPIRE. Используется, чтобы не
// упираться в лимиты маркетплейса ещё ДО того, как он начнёт отвечать 429:
// ключ нарезается по аккаунту и текущей минуте.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow делает INCR по ключу окна и ставит TTL при первом инкременте.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AccountWindowKey строит ключ лимитера для аккаунта маркетплейса в текущей
// минуте (fixed window).
func AccountWindowKey(account string, now time.Time) string {
	return fmt.Sprintf("rl:marketplace:%s:%s", account, now.UTC().Format("200601021504"))
}
