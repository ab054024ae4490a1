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
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
)

type outElement struct {
	elem  stravaganza.Element
	errCh chan<- error
}

func (e outElement) done(err error) {
	if e.errCh != nil {
		e.errCh <- err
	}
}

// outQueue is an unbounded FIFO drained by the connection writer goroutine,
// so that enqueuing never blocks on the transport.
type outQueue struct {
	mu     sync.Mutex
	items  []outElement
	closed bool
	notify chan struct{}
}

func newOutQueue() *outQueue {
	return &outQueue{notify: make(chan struct{}, 1)}
}

// push appends e to the queue. It reports false once the queue has been closed.
func (q *outQueue) push(e outElement) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until an element is available. It reports false once the queue
// is closed and every element pushed before closing has been returned.
func (q *outQueue) pop() (outElement, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = outElement{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		if q.closed {
			q.mu.Unlock()
			return outElement{}, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

// close stops accepting new elements. Already queued ones are still returned by pop.
func (q *outQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain closes the queue and returns every element not yet popped.
func (q *outQueue) drain() []outElement {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return items
}
