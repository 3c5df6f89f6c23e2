// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the literature backends.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/medpaper/internal/a2a"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps a server-provided Retry-After wait.
var MaxRetryAfter = 60 * time.Second

const defaultMaxRetries = 3

// retryable reports whether a status is worth retrying in place.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries on 429 (Too Many
// Requests) and 503 (Service Unavailable) with exponential backoff starting
// at RetryBaseDelay. A Retry-After header in seconds lengthens the wait, up to
// MaxRetryAfter.
//
// When maxRetries is 0 the default (3) is used. On each retry the response
// body is drained and closed before sleeping. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last throttled response is returned so the caller can inspect
// it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if wait := RetryAfter(resp.Header); wait > backoff {
			backoff = wait
		}
		slog.Debug("throttled, retrying",
			"host", req.URL.Host, "status", resp.StatusCode,
			"backoff", backoff, "attempt", attempt+1, "max", maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// RetryAfter parses a delay-seconds Retry-After header, capped at
// MaxRetryAfter. HTTP-date values and absent headers yield 0.
func RetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d
}

// StatusError is a non-success response from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	Wait       time.Duration
}

// CheckResponse returns a *StatusError for any non-200 response, reading a
// bounded prefix of the body for the message.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Wait:       RetryAfter(resp.Header),
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// A2AKind maps the status onto the A2A error taxonomy. Client errors other
// than throttling and timeouts are validation failures: retrying the same
// query cannot succeed.
func (e *StatusError) A2AKind() a2a.ErrorKind {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return a2a.KindRateLimit
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return a2a.KindTimeout
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return a2a.KindValidation
	default:
		return a2a.KindTool
	}
}

// RetryAfter is the server-requested wait, if any.
func (e *StatusError) RetryAfter() time.Duration { return e.Wait }
