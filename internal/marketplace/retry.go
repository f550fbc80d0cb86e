package marketplace

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultMaxAttempts       = 10
	defaultRetryAfterFallback = 2 * time.Second
)

// withRetry прогоняет один исходящий вызов с учётом лимитов маркетплейса:
// на 429 спим столько, сколько сказал Retry-After (или 2s по умолчанию),
// и повторяем ТОТ ЖЕ вызов. Любая другая ошибка уходит наверх сразу.
// Сон блокирует текущую горутину; отменять — снаружи через ctx у транспорта.
func (c *Client) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		var te *TransportError
		if !errors.As(lastErr, &te) || !te.RateLimited() {
			return lastErr
		}

		c.sleep(te.RetryAfterDuration(defaultRetryAfterFallback))
	}

	return errors.Wrapf(ErrRetryBudgetExhausted, "%d attempts, last: %v", c.maxAttempts, lastErr)
}
