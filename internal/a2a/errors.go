// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package a2a

import (
	"fmt"
	"math"
	"time"
)

// ErrorKind classifies a failed exchange.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION_ERROR"
	KindTool       ErrorKind = "TOOL_ERROR"
	KindTimeout    ErrorKind = "TIMEOUT"
	KindRateLimit  ErrorKind = "RATE_LIMIT"
	KindLLM        ErrorKind = "LLM_ERROR"

	// KindCancelled marks a run stopped by its caller. It is never retried.
	KindCancelled ErrorKind = "CANCELLED"
)

// RetryPolicy is the retry behaviour for one error kind.
type RetryPolicy struct {
	Recoverable bool
	MaxRetries  int
	// BackoffBase is in seconds.
	BackoffBase float64
}

// policies is read-only; PolicyFor returns copies.
var policies = map[ErrorKind]RetryPolicy{
	KindValidation: {Recoverable: false, MaxRetries: 0, BackoffBase: 0},
	KindTool:       {Recoverable: true, MaxRetries: 3, BackoffBase: 2.0},
	KindTimeout:    {Recoverable: true, MaxRetries: 2, BackoffBase: 5.0},
	KindRateLimit:  {Recoverable: true, MaxRetries: 3, BackoffBase: 10.0},
	KindLLM:        {Recoverable: true, MaxRetries: 2, BackoffBase: 3.0},
	KindCancelled:  {Recoverable: false, MaxRetries: 0, BackoffBase: 0},
}

// PolicyFor returns the retry policy for kind. Unknown kinds get the
// TOOL_ERROR policy.
func PolicyFor(kind ErrorKind) RetryPolicy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return policies[KindTool]
}

// Error is the structured error carried by an error response.
type Error struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	// RetryAfter is a server-provided wait in seconds (0 when absent).
	RetryAfter float64 `json:"retry_after,omitempty"`
}

// NewError builds an Error whose recoverability follows the policy table.
func NewError(kind ErrorKind, message string) Error {
	return Error{Kind: kind, Message: message, Recoverable: PolicyFor(kind).Recoverable}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// A2AKind lets an Error be re-classified without loss.
func (e Error) A2AKind() ErrorKind { return e.Kind }

// ShouldRetry reports whether a failed attempt (zero-based) may be retried.
func ShouldRetry(err Error, attempt int) bool {
	if !err.Recoverable || attempt < 0 {
		return false
	}
	return attempt < PolicyFor(err.Kind).MaxRetries
}

// BackoffSeconds returns base * 2^attempt for the error's kind.
func BackoffSeconds(err Error, attempt int) float64 {
	if attempt < 0 {
		attempt = 0
	}
	return PolicyFor(err.Kind).BackoffBase * math.Pow(2, float64(attempt))
}

// Delay converts the backoff into a duration of unit-sized seconds, waiting
// at least RetryAfter when the server supplied one. unit is time.Second in
// production; tests pass something smaller.
func Delay(err Error, attempt int, unit time.Duration) time.Duration {
	secs := BackoffSeconds(err, attempt)
	if err.RetryAfter > secs {
		secs = err.RetryAfter
	}
	return time.Duration(secs * float64(unit))
}
