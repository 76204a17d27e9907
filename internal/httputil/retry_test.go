// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
}

// throttlingServer answers the first n requests with status, then 200.
func throttlingServer(t *testing.T, n int32, status int, header http.Header) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= n {
			for k, vs := range header {
				w.Header()[k] = vs
			}
			w.WriteHeader(status)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func retryClient(ts *httptest.Server, maxRetries int, opts ...Option) *Client {
	cfg := testConfig()
	cfg.MaxRetries = maxRetries
	return NewClient(cfg, append([]Option{WithHTTPClient(ts.Client())}, opts...)...)
}

func TestSend_NoRetryOnSuccess(t *testing.T) {
	ts, calls := throttlingServer(t, 0, 0, nil)

	resp, err := retryClient(ts, 5).Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSend_RetriesTooManyRequests(t *testing.T) {
	ts, calls := throttlingServer(t, 2, http.StatusTooManyRequests, nil)

	resp, err := retryClient(ts, 5).Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestSend_RetriesServiceUnavailableWithRetryAfter(t *testing.T) {
	ts, calls := throttlingServer(t, 1, http.StatusServiceUnavailable, http.Header{"Retry-After": {"0"}})

	resp, err := retryClient(ts, 5).Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestSend_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	ts, calls := throttlingServer(t, 100, http.StatusTooManyRequests, nil)

	resp, err := retryClient(ts, 3).Get(context.Background(), ts.URL, nil)
	require.ErrorIs(t, err, ErrStatus)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	// 1 initial + 3 retries.
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestSend_DefaultMaxRetries(t *testing.T) {
	ts, calls := throttlingServer(t, 100, http.StatusTooManyRequests, nil)

	_, err := retryClient(ts, 0).Get(context.Background(), ts.URL, nil)
	require.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(1+defaultMaxRetries), atomic.LoadInt32(calls))
}

func TestSend_ContextCancelledDuringBackoff(t *testing.T) {
	ts, _ := throttlingServer(t, 100, http.StatusTooManyRequests, nil)

	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := retryClient(ts, 5).Get(ctx, ts.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_OtherErrorsAreNotRetried(t *testing.T) {
	ts, calls := throttlingServer(t, 100, http.StatusInternalServerError, nil)

	resp, err := retryClient(ts, 5).Get(context.Background(), ts.URL, nil)
	require.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSend_RetriesWaitOnLimiter(t *testing.T) {
	ts, calls := throttlingServer(t, 2, http.StatusTooManyRequests, nil)
	limiter := rate.NewLimiter(rate.Every(30*time.Millisecond), 1)

	start := time.Now()
	_, err := retryClient(ts, 5, WithLimiter(limiter)).Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"", 0, false},
		{"7", 7 * time.Second, true},
		{"-1", 0, false},
		{"soon", 0, false},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		got, ok := retryAfter(h, now)
		assert.Equal(t, tt.wantOK, ok, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}
}

func TestBackoff(t *testing.T) {
	old := RetryBaseDelay
	RetryBaseDelay = time.Second
	defer func() { RetryBaseDelay = old }()

	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, maxBackoff, backoff(10))
	assert.Equal(t, maxBackoff, backoff(100))
}
