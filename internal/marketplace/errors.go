package marketplace

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrCarrierNotFound — резолвер не смог классифицировать трек-номер.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrTrackingURLUnavailable is returned by a TrackingURLGenerator that has
	// no URL template for the given carrier.
	ErrTrackingURLUnavailable = errors.New("tracking url unavailable for carrier")

	// ErrInvalidTrackingPayload — ни одна из двух допустимых форм трекинга
	// (carrier_code | carrier_name+carrier_url) не собирается.
	ErrInvalidTrackingPayload = errors.New("invalid tracking payload")

	// ErrRetryBudgetExhausted — маркетплейс продолжил отвечать 429 после
	// всех попыток. Дальше решает вызывающая сторона.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// TransportError is any non-2xx marketplace response. Status and Body are kept
// for caller inspection; RetryAfter holds the raw Retry-After header value.
type TransportError struct {
	Status     int
	Body       []byte
	RetryAfter string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("marketplace http %d: %s", e.Status, truncate(e.Body, 256))
}

func (e *TransportError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// RetryAfterDuration parses the Retry-After header (seconds); def is used when
// the header is absent or unparseable.
func (e *TransportError) RetryAfterDuration(def time.Duration) time.Duration {
	if e.RetryAfter == "" {
		return def
	}
	secs, err := strconv.Atoi(e.RetryAfter)
	if err != nil || secs < 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
