// Copyright 2022 The jackal Authors
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

package client

import (
	"math"
	"math/rand"
	"time"
)

// backoff schedules reconnection attempts with capped, jittered exponential delays.
// It is only accessed from the client run queue.
type backoff struct {
	base   time.Duration
	factor float64
	max    time.Duration
	jitter float64
	randFn func() float64

	attempt int
	timer   *time.Timer
}

func newBackoff(cfg ReconnectConfig) *backoff {
	return &backoff{
		base:   cfg.Base,
		factor: cfg.Factor,
		max:    cfg.Max,
		jitter: cfg.Jitter,
		randFn: rand.Float64,
	}
}

// next returns the delay of the upcoming attempt and advances the attempt counter.
func (b *backoff) next() time.Duration {
	d := float64(b.base) * math.Pow(b.factor, float64(b.attempt))
	if d > float64(b.max) {
		d = float64(b.max)
	}
	if b.jitter > 0 {
		d *= 1 + b.jitter*(2*b.randFn()-1)
	}
	b.attempt++

	delay := time.Duration(d)
	switch {
	case delay > b.max:
		return b.max
	case delay < 0:
		return 0
	}
	return delay
}

// schedule arms the timer to run fn once the next delay elapses.
func (b *backoff) schedule(fn func()) time.Duration {
	b.cancel()
	d := b.next()
	b.timer = time.AfterFunc(d, fn)
	return d
}

// cancel stops a pending timer. It reports whether a scheduled run was prevented.
func (b *backoff) cancel() bool {
	if b.timer == nil {
		return false
	}
	stopped := b.timer.Stop()
	b.timer = nil
	return stopped
}

func (b *backoff) reset() {
	b.attempt = 0
}

func (b *backoff) attempts() int {
	return b.attempt
}
