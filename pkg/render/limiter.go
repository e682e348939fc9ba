package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a render could not get a turn before its
// context ended.
var ErrRateLimited = errors.New("render rate limit wait aborted")

var renderRateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "render_rate_limit_wait_seconds",
	Help:    "Time render attempts spent waiting for the rate limiter",
	Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
})

// limiter is a token bucket shared by all render attempts.
// A nil limiter never blocks.
type limiter struct {
	lim *rate.Limiter
}

// newLimiter permits rps attempts per second with the given burst.
// It returns nil when rps is not positive.
func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// wait blocks until an attempt may start.
func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	err := l.lim.Wait(ctx)
	renderRateLimitWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return &RenderError{
			ErrorClass: ErrorClassClient,
			Message:    "waiting for rate limiter",
			Err:        fmt.Errorf("%w: %v", ErrRateLimited, err),
		}
	}
	return nil
}
