// Copyright 2026 The Riff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"context"
	"math"
	"time"
)

// computeBackoff returns the delay before retry attempt n (0-based: the
// first retry is attempt 0). Exponential growth from the base delay by the
// multiplier, capped at max_delay when set.
func computeBackoff(policy *RetryPolicy, attempt int) time.Duration {
	base := time.Duration(policy.BackoffBaseMS) * time.Millisecond
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(base) * math.Pow(multiplier, float64(attempt))
	if policy.MaxDelayMS > 0 {
		if capped := float64(policy.MaxDelayMS) * float64(time.Millisecond); delay > capped {
			delay = capped
		}
	}
	return time.Duration(delay)
}

// waitBackoff sleeps for the computed delay, returning early with the
// context error on cancellation so in-flight retries stop immediately.
func waitBackoff(ctx context.Context, policy *RetryPolicy, attempt int) error {
	timer := time.NewTimer(computeBackoff(policy, attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
