package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// NotFoundError means the resource is gone (404/410). Never retried.
type NotFoundError struct {
	URL        string
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fetch: not found (status %d) %s", e.StatusCode, e.URL)
}

// ClientError is a non-retryable refusal: a 4xx other than 404/407/410/429,
// an unusable URL, or a path disallowed by robots.txt (Reason "robots").
type ClientError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *ClientError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("fetch: %s %s", e.Reason, e.URL)
	}
	return fmt.Sprintf("fetch: client error (status %d) %s", e.StatusCode, e.URL)
}

// FetchError is returned once the retry budget is exhausted.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last HTTP status seen, 0 if none
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch: %s failed after %d attempts (last status %d): %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError is the per-attempt cause for a retryable HTTP status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsRetryable reports whether a single-attempt error is worth another try.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if IsNotFound(err) || IsClientError(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return retryableStatus(se.code)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// StatusCode extracts the HTTP status carried by a fetch error, or 0.
func StatusCode(err error) int {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.StatusCode
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusProxyAuthRequired:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// rotatesProxy reports whether a status points at the egress rather than the site.
func rotatesProxy(code int) bool {
	return code == http.StatusProxyAuthRequired || code >= 500
}
