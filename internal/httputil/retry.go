// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP plumbing shared by the fetch stage and
// the remote oracle.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the first backoff step. Tests override it to avoid
// real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryAfter caps a server-supplied Retry-After delay.
var MaxRetryAfter = 2 * time.Minute

const defaultMaxRetries = 5

// StatusOverloaded is the non-standard status some model APIs return
// when they shed load.
const StatusOverloaded = 529

// Options tunes Do.
type Options struct {
	// MaxRetries bounds the extra attempts after the first (default 5).
	MaxRetries int

	// UserAgent, when set, replaces the User-Agent header.
	UserAgent string

	// Log receives a warning per retry. Nil discards them.
	Log *zap.Logger
}

// Retryable reports whether a response status is transient: rate
// limiting, service unavailable, or overloaded.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, StatusOverloaded:
		return true
	}
	return false
}

// Do executes req and retries transient statuses with exponential
// backoff starting at RetryBaseDelay. A Retry-After header given in
// seconds takes precedence over the computed delay. Request bodies are
// rewound through req.GetBody before each retry, so requests built by
// http.NewRequest from a bytes or strings reader can be retried.
//
// When retries run out the last response is returned unread so the
// caller can report it. A cancelled context during a wait returns
// ctx.Err().
func Do(ctx context.Context, client *http.Client, req *http.Request, opts Options) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}
		if opts.UserAgent != "" {
			attemptReq.Header.Set("User-Agent", opts.UserAgent)
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		log.Warn("transient HTTP status, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func backoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > MaxRetryAfter {
			d = MaxRetryAfter
		}
		return d
	}
	return RetryBaseDelay << attempt
}
