package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	defaultEffectAttempts = 3
	defaultEffectBackoff  = 500 * time.Millisecond
	defaultEffectTimeout  = 30 * time.Second
)

// Effect is a named unit of post-commit work. Effects run after an order is
// persisted and must never influence the outcome of the commit itself.
type Effect struct {
	Name    string
	OrderID string
	Run     func(ctx context.Context) error
}

// EffectRunner executes post-commit effects with bounded retry. Failures are
// logged, never propagated to the request that queued them.
type EffectRunner struct {
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	logger   func(ctx context.Context, event string, fields map[string]any)
	sleep    func(time.Duration)

	wg sync.WaitGroup
}

// EffectRunnerDeps configures an EffectRunner.
type EffectRunnerDeps struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
	Logger   func(ctx context.Context, event string, fields map[string]any)
	// Sleep is injectable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewEffectRunner constructs an EffectRunner with sane defaults.
func NewEffectRunner(deps EffectRunnerDeps) *EffectRunner {
	attempts := deps.Attempts
	if attempts <= 0 {
		attempts = defaultEffectAttempts
	}
	backoff := deps.Backoff
	if backoff <= 0 {
		backoff = defaultEffectBackoff
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultEffectTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &EffectRunner{
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
		logger:   logger,
		sleep:    sleep,
	}
}

// Enqueue schedules effects for asynchronous execution. The effects run in
// order on a fresh context detached from the request lifetime.
func (r *EffectRunner) Enqueue(effects ...Effect) {
	if r == nil || len(effects) == 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for _, effect := range effects {
			r.runEffect(effect)
		}
	}()
}

// RunSync executes effects inline; used by tests and shutdown drains.
func (r *EffectRunner) RunSync(effects ...Effect) {
	for _, effect := range effects {
		r.runEffect(effect)
	}
}

// Wait blocks until all queued effects have finished.
func (r *EffectRunner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func (r *EffectRunner) runEffect(effect Effect) {
	if effect.Run == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = effect.Run(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.logger(ctx, "order.effect.recovered", map[string]any{
					"effect":  effect.Name,
					"order":   effect.OrderID,
					"attempt": attempt,
				})
			}
			return
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
		if attempt < r.attempts {
			r.sleep(r.backoff * time.Duration(attempt))
		}
	}

	r.logger(ctx, "order.effect.failed", map[string]any{
		"effect":   effect.Name,
		"order":    effect.OrderID,
		"attempts": r.attempts,
		"error":    lastErr.Error(),
	})
}
