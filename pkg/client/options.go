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
	"crypto/tls"

	kitlog "github.com/go-kit/log"

	"github.com/jackal-xmpp/courier/pkg/avatar"
	"github.com/jackal-xmpp/courier/pkg/sasl"
)

// Option defines a client construction option.
type Option func(c *Client)

// WithLogger sets the client logger.
func WithLogger(logger kitlog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTLSConfig sets the base TLS configuration used for STARTTLS, direct TLS and secure websockets.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tlsCfg = cfg
	}
}

// WithAvatarHandler sets the callback receiving every retrieved avatar.
func WithAvatarHandler(h avatar.Handler) Option {
	return func(c *Client) {
		c.avatarHnd = h
	}
}

// WithDialer overrides the transport dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithDerivedKey provides salted password material to be used instead of the
// raw password whenever the server challenge matches it.
func WithDerivedKey(dk *sasl.DerivedKey) Option {
	return func(c *Client) {
		c.creds.Secret.Derived = dk
	}
}
