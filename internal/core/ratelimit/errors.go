package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RateLimitError is returned by adapters that can tell for certain a
// destination refused them for sending too much, usually an HTTP 429.
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the server supplied wait. Zero means none was given.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d), retry after %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// phrases that identify a rate limit in free-form error text.
var phrases = []string{
	"rate limit",
	"too many requests",
	"429",
	"throttl",
	"slow down",
	"try again later",
}

// IsRateLimited reports whether err looks like the destination throttling us.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryAfterOf extracts an explicit wait from err, if one was supplied.
func retryAfterOf(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter reads an HTTP Retry-After header, either delta-seconds or
// an HTTP date. It returns zero when the header is absent or malformed.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

type abortError struct{ err error }

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Abort wraps an error returned from an ExecuteWithRetry operation so that no
// further attempts are made. ExecuteWithRetry returns err itself.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}
