// Package retry wraps a batch query with bounded, outcome-classified retries.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// Config holds configuration for retry with backoff.
type Config struct {
	// MaxRetries is the number of additional attempts after the first one.
	// Default: 7
	MaxRetries int

	// Timeout bounds each attempt. Every attempt gets a fresh timeout.
	// Default: 30s
	Timeout time.Duration

	// InitialBackoff is the initial backoff duration.
	// Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 30s
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier applied to backoff after each attempt.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction is the fraction of backoff to randomize (0.0 to 1.0).
	// Default: 0.1 (10% jitter)
	JitterFraction float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        security.DefaultNumRetries,
		Timeout:           security.DefaultTimeout,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// SendFunc performs one attempt for a batch and returns one outcome per item.
type SendFunc func(ctx context.Context, batch []core.WorkItem, timeout time.Duration) []core.Outcome

// Hook is called before an item is attempted again.
type Hook func(item core.WorkItem, attempt int, err *core.QueryError, backoff time.Duration)

// Policy executes units against a SendFunc with retries.
type Policy struct {
	config  Config
	send    SendFunc
	onRetry Hook
	logger  *slog.Logger
}

// Option configures a Policy.
type Option interface {
	apply(*Policy)
}

type optionFunc func(*Policy)

func (f optionFunc) apply(p *Policy) { f(p) }

// WithHook registers a callback invoked before each retry.
func WithHook(h Hook) Option {
	return optionFunc(func(p *Policy) {
		p.onRetry = h
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	})
}

// New creates a retry policy. Retries and timeout are clamped to the security limits.
func New(config Config, send SendFunc, opts ...Option) *Policy {
	config.MaxRetries = security.ClampRetries(config.MaxRetries)
	config.Timeout = security.ClampTimeout(config.Timeout)
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}

	p := &Policy{
		config: config,
		send:   send,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.config
}

// Execute attempts a batch and retries the items whose failures are retryable,
// up to MaxRetries additional times. Items that succeed or fail permanently
// are not sent again. After exhaustion the last failure is returned as is.
//
// Cancelling ctx never interrupts an attempt in flight; it prevents the next
// attempt from starting. Items left with retries to spare are returned with
// Interrupted set.
func (p *Policy) Execute(ctx context.Context, batch []core.WorkItem) []core.Outcome {
	results := make([]core.Outcome, len(batch))
	pending := make([]int, len(batch))
	for i := range batch {
		pending[i] = i
	}

	backoff := p.config.InitialBackoff
	attemptCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		sub := make([]core.WorkItem, len(pending))
		for j, idx := range pending {
			sub[j] = batch[idx]
		}

		out := p.send(attemptCtx, sub, p.config.Timeout)
		if len(out) != len(sub) {
			out = mismatched(sub, len(out))
		}

		var retry []int
		var override time.Duration
		for j, idx := range pending {
			o := out[j]
			o.Attempts = attempt
			results[idx] = o
			if o.Err != nil && o.Err.Kind.Retryable() {
				retry = append(retry, idx)
				if o.Err.RetryAfter > override {
					override = o.Err.RetryAfter
				}
			}
		}

		if len(retry) == 0 {
			break
		}
		if attempt > p.config.MaxRetries {
			p.logger.Debug("retries exhausted", "items", len(retry), "attempts", attempt)
			break
		}
		if ctx.Err() != nil {
			interrupt(results, retry)
			break
		}

		sleep := override
		if sleep <= 0 {
			sleep = jittered(backoff, p.config.JitterFraction)
		}

		for _, idx := range retry {
			p.logger.Debug("retrying", "input", batch[idx].Input, "attempt", attempt+1, "error", results[idx].Err)
			if p.onRetry != nil {
				p.onRetry(batch[idx], attempt+1, results[idx].Err, sleep)
			}
		}

		// Wait for backoff or cancellation
		select {
		case <-ctx.Done():
			interrupt(results, retry)
			return results
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * p.config.BackoffMultiplier)
		if backoff > p.config.MaxBackoff {
			backoff = p.config.MaxBackoff
		}
		pending = retry
	}

	return results
}

func interrupt(results []core.Outcome, idx []int) {
	for _, i := range idx {
		results[i].Interrupted = true
	}
}

func jittered(backoff time.Duration, fraction float64) time.Duration {
	jitter := time.Duration(float64(backoff) * fraction * (rand.Float64()*2 - 1))
	d := backoff + jitter
	if d < 0 {
		return backoff
	}
	return d
}

func mismatched(batch []core.WorkItem, got int) []core.Outcome {
	out := make([]core.Outcome, len(batch))
	for i, item := range batch {
		out[i] = core.Failure(item, core.NewQueryError(core.KindTransport, "expected %d outcomes, got %d", len(batch), got))
	}
	return out
}
