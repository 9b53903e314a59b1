// Package llm defines the LLM Worker capability (spec.md §9's
// Subprocess-as-LLM re-architecture note): a small interface any backend —
// subprocess, HTTP client, or in-process library — can satisfy, plus the
// bounded-retry wrapper every synthesizer invokes it through.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/distillerr"
)

// Worker is the external boundary described in spec.md §6: render a prompt,
// invoke it, get plain text back, subject to a timeout and cancellation.
type Worker interface {
	// RenderPrompt fills the worker's template for the given system and
	// user content into a single prompt string.
	RenderPrompt(system, user string) string

	// Invoke sends prompt to the backend and returns its plain-text
	// response. A non-nil error is classified by distillerr.IsRetryable.
	Invoke(ctx context.Context, prompt string) (string, error)

	// Timeout is the backend's configured per-call timeout.
	Timeout() time.Duration
}

// RetryConfig configures InvokeWithRetry (spec.md §7 band 2 defaults: 3
// attempts, 2x backoff starting at 2s).
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryConfig matches spec.md §7's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialInterval: 2 * time.Second, Multiplier: 2}
}

// InvokeWithRetry calls w.Invoke, retrying on retryable failures up to
// cfg.MaxAttempts times with exponential backoff, generalizing the
// teacher's agent/rate_limit.go CreateBackoff/HandleRateLimit pattern.
// An empty response is treated as failure per spec.md §8.
func InvokeWithRetry(ctx context.Context, w Worker, prompt string, cfg RetryConfig, logger zerolog.Logger) (string, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.Multiplier = cfg.Multiplier
	b.MaxElapsedTime = 0 // bounded by attempt count, not elapsed wall time
	bo := backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1))

	var attempt int
	var lastErr error
	var result string

	op := func() error {
		attempt++
		callCtx := ctx
		var cancel context.CancelFunc
		if w.Timeout() > 0 {
			callCtx, cancel = context.WithTimeout(ctx, w.Timeout())
			defer cancel()
		}

		text, err := w.Invoke(callCtx, prompt)
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt).Msg("llm worker invocation failed")
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				lastErr = distillerr.NewRetryable("llm.Invoke", distillerr.ErrLLMTimeout, 0)
				return lastErr
			}
			if distillerr.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if text == "" {
			lastErr = distillerr.ErrLLMTimeout
			return distillerr.NewRetryable("llm.Invoke", errors.New("empty response"), 0)
		}
		lastErr = nil
		result = text
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", errWrap(lastErr, err)
	}
	return result, nil
}

func errWrap(last, retryErr error) error {
	if last != nil {
		return last
	}
	return retryErr
}
