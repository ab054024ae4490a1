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
	"context"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
)

type iqHandler func(ctx context.Context, iq *stravaganza.IQ, err error) error

type pendingIQ struct {
	to *jid.JID
	h  iqHandler
}

// iqTracker matches IQ responses with the requests awaiting them.
// It is only accessed from the client run queue.
type iqTracker struct {
	account *jid.JID
	pending map[string]pendingIQ
}

func newIQTracker(account *jid.JID) *iqTracker {
	return &iqTracker{
		account: account.ToBareJID(),
		pending: make(map[string]pendingIQ),
	}
}

// register awaits the response to the request iq.
func (t *iqTracker) register(iq stravaganza.Element, h iqHandler) error {
	id := iq.Attribute(stravaganza.ID)
	if _, ok := t.pending[id]; ok {
		return ErrDuplicateIQ
	}
	var to *jid.JID
	if s := iq.Attribute(stravaganza.To); len(s) > 0 {
		jd, err := jid.NewWithString(s, false)
		if err != nil {
			return ErrInvalidIQ
		}
		to = jd
	}
	t.pending[id] = pendingIQ{to: to, h: h}
	return nil
}

func (t *iqTracker) cancel(id string) {
	delete(t.pending, id)
}

// resolve delivers iq to its requester. It reports false when iq is not a
// response, nobody is awaiting it or it comes from an entity other than the one queried.
func (t *iqTracker) resolve(ctx context.Context, iq *stravaganza.IQ) (bool, error) {
	if !iq.IsResult() && !iq.IsError() {
		return false, nil
	}
	p, ok := t.pending[iq.ID()]
	if !ok || !t.isResponder(p.to, iq.FromJID()) {
		return false, nil
	}
	delete(t.pending, iq.ID())
	return true, p.h(ctx, iq, nil)
}

// isResponder reports whether from is allowed to answer a request sent to 'to'.
// Requests without 'to', or sent to the account bare JID, are answered by the
// account itself or by its server.
func (t *iqTracker) isResponder(to, from *jid.JID) bool {
	if from == nil {
		return false
	}
	if to == nil || to.String() == t.account.String() {
		return from.ToBareJID().String() == t.account.String() || from.String() == t.account.Domain()
	}
	return from.String() == to.String()
}

// failAll notifies err to every pending requester.
func (t *iqTracker) failAll(err error) {
	pending := t.pending
	t.pending = make(map[string]pendingIQ)
	for _, p := range pending {
		_ = p.h(context.Background(), nil, err)
	}
}

func (t *iqTracker) len() int {
	return len(t.pending)
}
