package cache

import (
	"context"
	"time"
)

// BytesCache — минимальный кэш "байты по ключу". Реализация best-effort:
// сервисы обязаны переживать его отсутствие и промахи.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
