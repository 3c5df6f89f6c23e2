// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Kinded is implemented by errors that already know their A2A kind, such as
// the typed API errors returned by LLM providers and search backends.
type Kinded interface {
	error
	A2AKind() ErrorKind
}

// RetryAfterer is implemented by errors that carry a server-provided wait.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// defaultRateLimitRetryAfter is applied when a rate limit is detected by
// message content alone.
const defaultRateLimitRetryAfter = 10.0

// rule inspects err and returns a classification when it matches.
type rule func(err error, msg string) (Error, bool)

// rules are tried in order; the first match wins. Typed rules precede the
// message heuristics so wrappers from clients always take priority.
var rules = []rule{
	typedRule,
	contextRule,
	timeoutRule,
	rateLimitRule,
	validationRule,
}

// Classify maps an arbitrary error to an A2A Error. Anything no rule
// recognises becomes a recoverable TOOL_ERROR so transient infrastructure
// faults are retried rather than failing the task.
func Classify(err error) Error {
	if err == nil {
		return Error{}
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, r := range rules {
		if e, ok := r(err, lower); ok {
			if e.Message == "" {
				e.Message = msg
			}
			return e
		}
	}
	return NewError(KindTool, msg)
}

func typedRule(err error, _ string) (Error, bool) {
	var direct Error
	if errors.As(err, &direct) {
		return direct, true
	}
	var k Kinded
	if !errors.As(err, &k) {
		return Error{}, false
	}
	e := NewError(k.A2AKind(), err.Error())
	var ra RetryAfterer
	if errors.As(err, &ra) {
		e.RetryAfter = ra.RetryAfter().Seconds()
	}
	return e, true
}

func contextRule(err error, _ string) (Error, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimeout, ""), true
	case errors.Is(err, context.Canceled):
		return NewError(KindCancelled, ""), true
	}
	return Error{}, false
}

func timeoutRule(_ error, msg string) (Error, bool) {
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return NewError(KindTimeout, ""), true
	}
	return Error{}, false
}

func rateLimitRule(_ error, msg string) (Error, bool) {
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		e := NewError(KindRateLimit, "")
		e.RetryAfter = defaultRateLimitRetryAfter
		return e, true
	}
	return Error{}, false
}

// validationRule covers malformed values: decode type errors, syntax
// errors, number parsing, and anything that calls itself a validation error.
func validationRule(err error, msg string) (Error, bool) {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		numErr    *strconv.NumError
	)
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) || errors.As(err, &numErr) ||
		strings.Contains(msg, "validation") {
		return NewError(KindValidation, ""), true
	}
	return Error{}, false
}
