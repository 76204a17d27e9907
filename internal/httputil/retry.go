// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client shared by the crawler, the DOI
// resolver and the search providers.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryBaseDelay is the first backoff after a throttled response when the
// server sends no Retry-After. Tests shrink it.
var RetryBaseDelay = 10 * time.Second

const (
	defaultMaxRetries = 5
	maxBackoff        = 2 * time.Minute
)

// retryable reports statuses that mean "try again later".
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// retryAfter reads a Retry-After header given either as seconds or as an
// HTTP date.
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// backoff doubles RetryBaseDelay per attempt, capped at maxBackoff.
func backoff(attempt int) time.Duration {
	if attempt > 16 {
		return maxBackoff
	}
	d := RetryBaseDelay << attempt
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// send issues req, waiting on the limiter before every attempt. Throttled
// responses (429, 503) are retried up to maxRetries times; the wait is the
// server's Retry-After when present, else exponential backoff. The last
// throttled response is returned once retries run out.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait, ok := retryAfter(resp.Header, time.Now())
		if !ok {
			wait = backoff(attempt)
		}
		wait = min(wait, maxBackoff)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.log.WithFields(logrus.Fields{
			"url":     req.URL.String(),
			"status":  resp.StatusCode,
			"wait":    wait,
			"attempt": attempt + 1,
		}).Warn("throttled, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
