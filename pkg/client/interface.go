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

	"github.com/jackal-xmpp/courier/pkg/transport"
)

//go:generate moq -out session.mock_test.go . session:sessionMock
type session interface {
	OpenStream(ctx context.Context) error
	Close(ctx context.Context) error
	StreamID() string
	SetJID(jd *jid.JID)

	Send(ctx context.Context, elem stravaganza.Element) error
	Receive() (stravaganza.Element, error)

	Reset(tr transport.Transport) error
}

//go:generate moq -out transport.mock_test.go . clientTransport:transportMock
type clientTransport interface {
	transport.Transport
}

// Dialer opens the underlying stream transport of a connection cycle.
type Dialer interface {
	Dial(ctx context.Context) (transport.Transport, error)
}

// DialerFunc is an adapter to allow the use of ordinary functions as dialers.
type DialerFunc func(ctx context.Context) (transport.Transport, error)

// Dial satisfies Dialer interface.
func (f DialerFunc) Dial(ctx context.Context) (transport.Transport, error) {
	return f(ctx)
}
