// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Operation is a unit of work the handler may run more than once.
type Operation interface {
	Run(ctx context.Context) (any, error)
}

// OperationFunc adapts a plain function to Operation.
type OperationFunc func(ctx context.Context) (any, error)

// Run calls f(ctx).
func (f OperationFunc) Run(ctx context.Context) (any, error) {
	return f(ctx)
}

// RetryFunc is called before each retry sleep.
type RetryFunc func(err error, attempt int, delay time.Duration)

// Stats counts handler activity since creation or the last reset.
type Stats struct {
	TotalAttempts     int `json:"total_attempts"`
	SuccessfulRetries int `json:"successful_retries"`
	FailedRetries     int `json:"failed_retries"`
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Handler runs operations under a retry strategy and keeps statistics.
type Handler struct {
	strategy Strategy
	sleep    SleepFunc

	mu    sync.Mutex
	stats Stats
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithDefaultStrategy sets the strategy used when Execute is not given one.
func WithDefaultStrategy(s Strategy) HandlerOption {
	return func(h *Handler) {
		h.strategy = s
	}
}

// WithSleeper replaces the backoff sleep. Tests use it to avoid real waits.
func WithSleeper(fn SleepFunc) HandlerOption {
	return func(h *Handler) {
		if fn != nil {
			h.sleep = fn
		}
	}
}

// NewHandler creates a retry handler.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		strategy: DefaultStrategy(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ExecOption customizes a single Execute call.
type ExecOption func(*execConfig)

type execConfig struct {
	strategy *Strategy
	onRetry  RetryFunc
}

// WithStrategy overrides the handler's default strategy for one call.
func WithStrategy(s Strategy) ExecOption {
	return func(c *execConfig) {
		c.strategy = &s
	}
}

// WithOnRetry registers a callback invoked synchronously before each retry.
func WithOnRetry(fn RetryFunc) ExecOption {
	return func(c *execConfig) {
		c.onRetry = fn
	}
}

// Execute runs op until it succeeds, fails with an error the strategy will
// not retry, or runs out of attempts. The returned error is the operation's
// own error, never wrapped. Cancelling ctx during a backoff returns ctx.Err().
func (h *Handler) Execute(ctx context.Context, op Operation, opts ...ExecOption) (any, error) {
	cfg := execConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	strategy := h.strategy
	if cfg.strategy != nil {
		strategy = *cfg.strategy
	}

	var lastErr error
	for attempt := 0; attempt <= strategy.MaxRetries; attempt++ {
		result, err := op.Run(ctx)
		h.record(func(s *Stats) { s.TotalAttempts++ })

		if err == nil {
			if attempt > 0 {
				h.record(func(s *Stats) { s.SuccessfulRetries++ })
				slog.Info("Operation succeeded after retry", "retries", attempt)
			}
			return result, nil
		}
		lastErr = err

		if !strategy.ShouldRetry(err, attempt) {
			slog.Debug("Not retrying operation",
				"error_type", TypeName(err),
				"error", err,
				"attempt", attempt,
				"category", Classify(err))
			h.record(func(s *Stats) { s.FailedRetries++ })
			return nil, err
		}

		delay := strategy.Delay(attempt, suggestedDelay(err))
		slog.Warn("Retrying operation",
			"retry", attempt+1,
			"max_retries", strategy.MaxRetries,
			"delay", delay.Round(time.Millisecond),
			"error", err)

		if cfg.onRetry != nil {
			cfg.onRetry(err, attempt, delay)
		}

		if err := h.sleep(ctx, delay); err != nil {
			h.record(func(s *Stats) { s.FailedRetries++ })
			return nil, err
		}
	}

	h.record(func(s *Stats) { s.FailedRetries++ })
	return nil, lastErr
}

// Do is Execute for a typed function.
func Do[T any](ctx context.Context, h *Handler, fn func(ctx context.Context) (T, error), opts ...ExecOption) (T, error) {
	var zero T
	result, err := h.Execute(ctx, OperationFunc(func(ctx context.Context) (any, error) {
		return fn(ctx)
	}), opts...)
	if err != nil {
		return zero, err
	}
	typed, _ := result.(T)
	return typed, nil
}

// Stats returns a copy of the current counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// ResetStats zeroes the counters.
func (h *Handler) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = Stats{}
}

// Strategy returns the handler's default strategy.
func (h *Handler) Strategy() Strategy {
	return h.strategy
}

func (h *Handler) record(fn func(*Stats)) {
	h.mu.Lock()
	fn(&h.stats)
	h.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
