// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package upstream drives logical requests against the fantasy-sports
// provider: one HTTP client with per-attempt timeouts, a declarative
// retry policy for transient failures, a one-shot credential
// refresh-and-retry on 401, and path-variant fallback for resources
// with more than one addressing shape.
package upstream

import (
	"context"
	"time"
)

// Policy is a declarative retry policy: how many attempts a logical
// call gets, how long to back off between them, and which failures are
// worth retrying. Mechanism lives in the orchestrator; policy lives
// here.
type Policy struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry; each further
	// retry doubles it.
	BaseDelay time.Duration

	// Retryable reports whether an attempt outcome should consume
	// another attempt. status is 0 when the failure was a transport
	// error.
	Retryable func(status int, err error) bool
}

// DefaultPolicy returns the production policy: the first attempt plus
// two retries, exponential backoff from 250ms, retrying server errors
// and transport failures only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		Retryable:   RetryServerErrors,
	}
}

// RetryServerErrors is the default retryable-predicate: transport
// errors and 5xx responses. 4xx responses are never retried here; the
// one-time 401 refresh path is handled separately by the orchestrator.
func RetryServerErrors(status int, err error) bool {
	if err != nil {
		return true
	}
	return status >= 500
}

// Delay returns the backoff before retry number retry (0-based):
// BaseDelay, 2×BaseDelay, 4×BaseDelay, ...
func (p Policy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return p.BaseDelay * time.Duration(1<<uint(retry))
}

// wait sleeps for the given delay or until the context is done,
// whichever comes first.
func wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
