// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medpaper/internal/a2a"
)

func init() {
	// Use tiny delays so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
	MaxRetryAfter = 5 * time.Millisecond
}

// statusSequence serves the given statuses in order, repeating the last.
func statusSequence(calls *int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(calls, 1))
		if n > len(codes) {
			n = len(codes)
		}
		w.WriteHeader(codes[n-1])
	}
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		codes      []int
		maxRetries int
		wantStatus int
		wantCalls  int32
	}{
		{"immediate success", []int{200}, 5, 200, 1},
		{"429 then 200", []int{429, 429, 200}, 5, 200, 3},
		{"503 then 200", []int{503, 200}, 5, 200, 2},
		{"exhausts retries", []int{429}, 3, 429, 4},
		{"default max retries", []int{503}, 0, 503, 4},
		{"500 passes through", []int{500}, 5, 500, 1},
		{"404 passes through", []int{404}, 5, 404, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(statusSequence(&calls, tt.codes...))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), ts.Client(), req, tt.maxRetries)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	// Use a longer base delay so the context cancels during the wait.
	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"120", MaxRetryAfter},
	}
	for _, tt := range tests {
		h := http.Header{}
		h.Set("Retry-After", tt.value)
		assert.Equal(t, tt.want, RetryAfter(h), "value %q", tt.value)
	}

	old := MaxRetryAfter
	MaxRetryAfter = time.Minute
	defer func() { MaxRetryAfter = old }()
	h := http.Header{}
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, RetryAfter(h))
}

func TestCheckResponse(t *testing.T) {
	ok := &http.Response{StatusCode: 200, Body: http.NoBody}
	assert.NoError(t, CheckResponse("PubMed", ok))

	h := http.Header{}
	h.Set("Retry-After", "1")
	err := CheckResponse("PubMed", &http.Response{
		StatusCode: 429,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader("slow down")),
	})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "slow down", se.Body)
	assert.Equal(t, MaxRetryAfter, se.RetryAfter())
	assert.Contains(t, err.Error(), "PubMed returned 429")
}

func TestStatusErrorKinds(t *testing.T) {
	tests := []struct {
		code        int
		kind        a2a.ErrorKind
		recoverable bool
	}{
		{429, a2a.KindRateLimit, true},
		{408, a2a.KindTimeout, true},
		{504, a2a.KindTimeout, true},
		{400, a2a.KindValidation, false},
		{404, a2a.KindValidation, false},
		{500, a2a.KindTool, true},
		{503, a2a.KindTool, true},
	}
	for _, tt := range tests {
		e := a2a.Classify(&StatusError{Service: "OpenAlex", StatusCode: tt.code})
		assert.Equal(t, tt.kind, e.Kind, "status %d", tt.code)
		assert.Equal(t, tt.recoverable, e.Recoverable, "status %d", tt.code)
	}
}
