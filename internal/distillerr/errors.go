// Package distillerr defines the error taxonomy shared across the pipeline
// (spec.md §6/§7): soft per-record errors, retryable operation errors, stage
// failures, and fatal errors, plus the sentinel values callers classify on.
package distillerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err...) at call sites so
// errors.Is still matches through layered context.
var (
	// ErrSourceUnavailable means a source root (directory, feed URL) could
	// not be reached at all. Fatal for that source; other sources continue.
	ErrSourceUnavailable = errors.New("distillerr: source unavailable")

	// ErrParseError is a soft, per-record failure: the record is skipped.
	ErrParseError = errors.New("distillerr: parse error")

	// ErrLLMUnavailable means the configured LLM worker could not be
	// invoked at all (process not found, connection refused).
	ErrLLMUnavailable = errors.New("distillerr: llm unavailable")

	// ErrLLMTimeout means the LLM worker did not respond within its
	// configured timeout. Retryable.
	ErrLLMTimeout = errors.New("distillerr: llm timeout")

	// ErrContentTooShort means generated prose fell short of the
	// configured length band after retry.
	ErrContentTooShort = errors.New("distillerr: content too short")

	// ErrContentTooLong means generated prose exceeded the configured
	// length band after retry.
	ErrContentTooLong = errors.New("distillerr: content too long")

	// ErrPublisherRejected means a publisher's deliver() call failed in a
	// way the publisher itself reports as non-retryable (e.g. 4xx from a
	// CMS API).
	ErrPublisherRejected = errors.New("distillerr: publisher rejected")

	// ErrStateCorrupt is fatal: the persisted state file failed to parse
	// and no safe fallback exists.
	ErrStateCorrupt = errors.New("distillerr: state corrupt")
)

// RetryableError carries a hint for how long to wait before retrying, as
// extracted from a provider error (HTTP Retry-After header, provider-specific
// rate-limit payload). Generalizes the teacher's RateLimitError.
type RetryableError struct {
	Op         string
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %v (retry after %s)", e.Op, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryable wraps err as a RetryableError with an optional retry-after hint.
func NewRetryable(op string, err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Op: op, Err: err, RetryAfter: retryAfter}
}

// IsRetryable reports whether err belongs to the retryable band (spec.md §7
// band 2): LLM timeouts, *RetryableError values, and a handful of transient
// substrings surfaced by provider SDKs that don't wrap a typed error.
// Generalizes the teacher's IsRateLimitError (agent/rate_limit.go).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLLMTimeout) {
		return true
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "too many requests", "timeout", "temporarily unavailable", "connection reset", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err belongs to the fatal band (spec.md §7 band 4):
// the entire pipeline run must abort, leaving committed state intact.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStateCorrupt)
}

// IsSoft reports whether err is a per-record soft failure: logged, the
// record dropped, the pipeline continues.
func IsSoft(err error) bool {
	return errors.Is(err, ErrParseError)
}

// ExtractRetryAfter mirrors the teacher's agent/rate_limit.go helper: it
// inspects a RetryableError first, then an HTTP response's Retry-After
// header (seconds or RFC1123 date), falling back to def.
func ExtractRetryAfter(err error, resp *http.Response, def time.Duration) time.Duration {
	var re *RetryableError
	if errors.As(err, &re) && re.RetryAfter > 0 {
		return re.RetryAfter
	}
	if resp != nil {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := time.ParseDuration(v + "s"); perr == nil {
				return secs
			}
			if t, perr := http.ParseTime(v); perr == nil {
				if d := time.Until(t); d > 0 {
					return d
				}
			}
		}
	}
	return def
}
