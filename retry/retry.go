// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package retry implements backoff-driven retry of a fallible operation,
// used by the daemon to redial a dropped connect:-origin TCP transport
// rather than looping by hand around a sleep.
package retry

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, backoff.Next returns Stop, or ctx is
// canceled, whichever comes first. On failure, including cancellation, the
// last error fn returned is returned.
func Retry(ctx context.Context, backoff Backoff, fn func() error) error {
	var err error
	for {
		if err = fn(); err == nil {
			return nil
		}

		wait := backoff.Next()
		if wait == Stop {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		default:
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
