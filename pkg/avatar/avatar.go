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

package avatar

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/jackal-xmpp/courier/pkg/util/crashreporter"
)

const defaultFetchTimeout = time.Second * 15

// Avatar represents a retrieved avatar image.
type Avatar struct {
	// Owner is the bare JID of the avatar owner.
	Owner *jid.JID

	// Hash is the hex encoded SHA-1 of the image data.
	Hash string

	// MIMEType is the image content type.
	MIMEType string

	// Data contains the raw image bytes.
	Data []byte
}

// Retriever fetches an avatar image from its origin.
type Retriever interface {
	Retrieve(ctx context.Context, owner *jid.JID, hash string) (*Avatar, error)
}

// Handler is invoked once per completed fire-and-forget fetch.
type Handler func(avatar *Avatar)

// ErrHashMismatch is returned when retrieved data does not match the requested hash.
type ErrHashMismatch struct {
	Expected string
	Got      string
}

func (e *ErrHashMismatch) Error() string {
	return fmt.Sprintf("avatar: hash mismatch: expected %s, got %s", e.Expected, e.Got)
}

// Fetcher retrieves avatars deduplicating concurrent requests for the same hash.
type Fetcher struct {
	r       Retriever
	h       Handler
	timeout time.Duration
	logger  kitlog.Logger

	sf singleflight.Group
	cb *gobreaker.CircuitBreaker

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// NewFetcher returns a new Fetcher instance.
func NewFetcher(r Retriever, h Handler, timeout time.Duration, logger kitlog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	f := &Fetcher{
		r:        r,
		h:        h,
		timeout:  timeout,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "avatar",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			level.Info(f.logger).Log("msg", "avatar circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return f
}

// Get retrieves the avatar identified by hash. Concurrent calls for the same hash share a single retrieval.
func (f *Fetcher) Get(ctx context.Context, owner *jid.JID, hash string) (*Avatar, error) {
	v, err, _ := f.sf.Do(hash, func() (interface{}, error) {
		return f.cb.Execute(func() (interface{}, error) {
			avatar, err := f.r.Retrieve(ctx, owner, hash)
			if err != nil {
				return nil, err
			}
			sum := sha1.Sum(avatar.Data)
			if got := hex.EncodeToString(sum[:]); got != hash {
				return nil, &ErrHashMismatch{Expected: hash, Got: got}
			}
			avatar.Hash = hash
			return avatar, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*Avatar), nil
}

// Fetch starts a background retrieval, if none is already running for hash,
// delivering the result to the configured handler. Failures are only logged.
func (f *Fetcher) Fetch(owner *jid.JID, hash string) {
	f.mu.Lock()
	if _, ok := f.inFlight[hash]; ok {
		f.mu.Unlock()
		return
	}
	f.inFlight[hash] = struct{}{}
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer crashreporter.RecoverAndReportPanic("avatar")
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			delete(f.inFlight, hash)
			f.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		avatar, err := f.Get(ctx, owner, hash)
		if err != nil {
			level.Warn(f.logger).Log("msg", "failed to fetch avatar", "jid", owner.String(), "hash", hash, "err", err)
			return
		}
		if f.h != nil {
			f.h(avatar)
		}
	}()
}

// Wait blocks until every background retrieval completes.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}
