// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package retry

import "time"

// Stop is returned by Backoff.Next to indicate no more retries should be
// attempted.
const Stop time.Duration = -1

// Backoff computes the interval to wait between retry attempts.
type Backoff interface {
	// Next returns the duration to wait before the next retry, or Stop if
	// no more retries should be attempted.
	Next() time.Duration
}

// ZeroBackoff retries immediately, forever.
type ZeroBackoff struct{}

func (b *ZeroBackoff) Next() time.Duration {
	return 0
}

// constantBackoff retries after a fixed interval, forever.
type constantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff returns a Backoff that always waits interval between
// retries.
func NewConstantBackoff(interval time.Duration) Backoff {
	return &constantBackoff{interval: interval}
}

func (b *constantBackoff) Next() time.Duration {
	return b.interval
}

// maxRetriesBackoff wraps another Backoff, stopping after a fixed number of
// attempts.
type maxRetriesBackoff struct {
	backoff Backoff
	max     int
	tries   int
}

// WithMaxRetries wraps backoff so that it stops after max calls to Next.
func WithMaxRetries(backoff Backoff, max int) Backoff {
	return &maxRetriesBackoff{backoff: backoff, max: max}
}

func (b *maxRetriesBackoff) Next() time.Duration {
	if b.tries >= b.max {
		return Stop
	}
	b.tries++
	return b.backoff.Next()
}
