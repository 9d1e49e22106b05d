// Package ratelimit gates outbound provider calls behind a shared
// minimum-interval pacer with a bounded retry budget for throttled requests.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRateLimited marks a provider response that signaled throttling (HTTP 429
// or equivalent). Operations failing with it are retried inside Do; any other
// error propagates immediately.
var ErrRateLimited = errors.New("provider rate limited")

// Limiter serializes dispatch start times across all callers sharing one
// instance. It guarantees minimum spacing between dispatch attempts, not
// completion order.
type Limiter struct {
	pacer      *rate.Limiter
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger

	mu            sync.Mutex
	lastRequestAt time.Time
}

func NewLimiter(interval time.Duration, maxRetries int, retryDelay time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		pacer:      rate.NewLimiter(rate.Every(interval), 1),
		interval:   interval,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Do runs op once the interval since the previous dispatch has elapsed. When
// op fails with ErrRateLimited it is retried up to the configured budget,
// waiting attempt*retryDelay before each retry. Each attempt, retries
// included, counts as a dispatch.
func (l *Limiter) Do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * l.retryDelay
			l.logger.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("provider throttled, backing off before retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if waitErr := l.pacer.Wait(ctx); waitErr != nil {
			return waitErr
		}
		l.markDispatch()

		err = op(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return err
		}
	}

	l.logger.Error().Int("max_retries", l.maxRetries).Msg("retry budget exhausted")
	return fmt.Errorf("retry budget exhausted after %d attempts: %w", l.maxRetries+1, err)
}

// Enqueue is the typed form of Limiter.Do for operations returning a value.
func Enqueue[T any](ctx context.Context, l *Limiter, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (l *Limiter) markDispatch() {
	l.mu.Lock()
	l.lastRequestAt = time.Now()
	l.mu.Unlock()
}

// LastRequestAt reports the start time of the most recent dispatch attempt.
func (l *Limiter) LastRequestAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRequestAt
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}
