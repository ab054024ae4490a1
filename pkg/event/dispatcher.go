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

package event

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrSubscriptionClosed is returned by Next once a subscription has been closed and drained.
var ErrSubscriptionClosed = errors.New("event: subscription closed")

// Dispatcher fans out published events to every active subscription.
// Each subscription observes events in publishing order, starting at the moment it was created.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewDispatcher returns an initialized Dispatcher instance.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription.
// Subscribing to a closed dispatcher returns an already closed subscription.
func (d *Dispatcher) Subscribe() *Subscription {
	s := &Subscription{
		d:      d,
		notify: make(chan struct{}, 1),
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		s.closed = true
		return s
	}
	d.subs[s] = struct{}{}
	return s
}

// Publish enqueues ev into every active subscription. It never blocks on slow consumers.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for s := range d.subs {
		s.push(ev)
	}
}

// Close closes every subscription. Already queued events remain readable.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for s := range d.subs {
		s.close()
	}
	d.subs = nil
}

func (d *Dispatcher) unsubscribe(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.subs, s)
}

// Subscription represents an ordered, single-pass event sequence.
type Subscription struct {
	d      *Dispatcher
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
}

// Next blocks until the next event is available, ctx is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrSubscriptionClosed
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close detaches the subscription from its dispatcher discarding any pending event.
func (s *Subscription) Close() {
	s.d.unsubscribe(s)

	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.close()
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
