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
	"encoding/base64"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	streamerror "github.com/jackal-xmpp/stravaganza/v2/errors/stream"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/pkg/errors"

	"github.com/jackal-xmpp/courier/pkg/sasl"
	"github.com/jackal-xmpp/courier/pkg/transport"
	xmpputil "github.com/jackal-xmpp/courier/pkg/util/xmpp"
)

func (c *Client) handleFeatures(ctx context.Context, elem stravaganza.Element) error {
	if elem.Name() != "stream:features" {
		return streamerror.E(streamerror.UnsupportedStanzaType)
	}
	// every stream restart yields a brand new feature set
	c.features = parseFeatures(elem)

	if c.flags.isAuthenticated() {
		return c.bind(ctx, c.cfg.Resource)
	}
	if c.getState() == Connecting {
		c.setState(StreamNegotiating)
	}
	if !c.flags.isSecured() {
		if c.features.startTLS && c.tr.Type() == transport.Socket {
			c.step = awaitingProceed
			return c.sendElement(ctx, stravaganza.NewBuilder("starttls").
				WithAttribute(stravaganza.Namespace, tlsNamespace).
				Build(),
			)
		}
		if !c.cfg.TLS.Optional || c.features.startTLSRequired {
			return ErrTLSRequired
		}
		level.Warn(c.logger).Log("msg", "proceeding over an unprotected stream")
	}
	c.setState(Authenticating)
	c.policy = sasl.Policy{
		Preference:   c.prefs,
		Confidential: c.flags.isSecured(),
	}
	return c.startAuthentication(ctx)
}

func (c *Client) handleProceed(ctx context.Context, elem stravaganza.Element) error {
	if elem.Attribute(stravaganza.Namespace) != tlsNamespace {
		return streamerror.E(streamerror.InvalidNamespace)
	}
	switch elem.Name() {
	case "proceed":
		if err := c.tr.StartTLS(ctx, c.tlsCfg); err != nil {
			return &TransportError{Err: err}
		}
		c.flags.setSecured()
		level.Info(c.logger).Log("msg", "stream secured")

		return c.restartStream(ctx)

	case "failure":
		return ErrTLSFailure

	default:
		return streamerror.E(streamerror.UnsupportedStanzaType)
	}
}

func (c *Client) startAuthentication(ctx context.Context) error {
	m, err := sasl.Select(c.features.mechanisms, c.policy)
	if err != nil {
		if c.lastAuthErr != nil {
			return c.authExhausted()
		}
		return &AuthError{Err: err}
	}
	auth, err := sasl.NewAuthenticator(m, c.creds)
	if err != nil {
		return &AuthError{Mechanism: m, Err: err}
	}
	c.auth = auth
	c.authAttempts++

	initial, err := auth.Start()
	if err != nil {
		return c.handleAuthFailure(ctx, err)
	}
	level.Info(c.logger).Log("msg", "authenticating", "mechanism", m.String(), "attempt", c.authAttempts)

	c.step = awaitingSASL
	return c.sendElement(ctx, stravaganza.NewBuilder("auth").
		WithAttribute(stravaganza.Namespace, sasl.Namespace).
		WithAttribute("mechanism", m.String()).
		WithText(encodeInitialResponse(initial)).
		Build(),
	)
}

func (c *Client) handleSASL(ctx context.Context, elem stravaganza.Element) error {
	if elem.Attribute(stravaganza.Namespace) != sasl.Namespace {
		return streamerror.E(streamerror.InvalidNamespace)
	}
	switch elem.Name() {
	case "challenge":
		if c.abortCause != nil {
			return nil
		}
		data, err := decodeSASLPayload(elem.Text())
		if err != nil {
			return c.abortAuthentication(ctx, &sasl.MalformedChallengeError{Field: "base64"})
		}
		resp, err := c.auth.Challenge(data)
		if err != nil {
			if sasl.IsFatal(err) {
				return c.rejectAuthentication(err)
			}
			return c.abortAuthentication(ctx, err)
		}
		b := stravaganza.NewBuilder("response").
			WithAttribute(stravaganza.Namespace, sasl.Namespace)
		if len(resp) > 0 {
			b.WithText(base64.StdEncoding.EncodeToString(resp))
		}
		return c.sendElement(ctx, b.Build())

	case "success":
		if c.abortCause != nil {
			return c.rejectAuthentication(c.abortCause)
		}
		data, err := decodeSASLPayload(elem.Text())
		if err != nil {
			return c.rejectAuthentication(&sasl.MalformedChallengeError{Field: "success"})
		}
		if err := c.auth.Outcome(data); err != nil {
			return c.rejectAuthentication(err)
		}
		mech := c.auth.Mechanism()
		reportAuthentication(mech.String(), "success")
		level.Info(c.logger).Log("msg", "authenticated", "mechanism", mech.String())

		c.auth = nil
		c.lastAuthErr = nil
		c.flags.setAuthenticated()
		c.setState(Binding)

		return c.restartStream(ctx)

	case "failure":
		cause := c.abortCause
		c.abortCause = nil
		if cause == nil {
			cause = decodeSASLFailure(elem)
		}
		return c.handleAuthFailure(ctx, cause)

	default:
		return streamerror.E(streamerror.UnsupportedStanzaType)
	}
}

// abortAuthentication cancels the exchange on a locally detected error.
// The cause is handled once the server acknowledges the abort.
func (c *Client) abortAuthentication(ctx context.Context, cause error) error {
	c.abortCause = cause
	return c.sendElement(ctx, stravaganza.NewBuilder("abort").
		WithAttribute(stravaganza.Namespace, sasl.Namespace).
		Build(),
	)
}

// handleAuthFailure discards the failed attempt and falls back to the next allowed mechanism, if any.
func (c *Client) handleAuthFailure(ctx context.Context, cause error) error {
	mech := c.auth.Mechanism()
	c.auth.Abort()
	c.auth = nil

	reportAuthentication(mech.String(), "failure")
	level.Warn(c.logger).Log("msg", "authentication attempt failed", "mechanism", mech.String(), "err", cause)

	if sasl.IsFatal(cause) {
		return &AuthError{Mechanism: mech, Err: cause}
	}
	c.lastAuthErr = &AuthError{Mechanism: mech, Err: cause}
	c.policy = c.policy.Without(mech)

	if c.authAttempts >= c.cfg.SASL.MaxAttempts {
		return c.authExhausted()
	}
	return c.startAuthentication(ctx)
}

// rejectAuthentication terminates the attempt without any fallback.
func (c *Client) rejectAuthentication(cause error) error {
	mech := c.auth.Mechanism()
	c.auth.Abort()
	c.auth = nil

	reportAuthentication(mech.String(), "failure")
	return &AuthError{Mechanism: mech, Err: cause}
}

func (c *Client) authExhausted() error {
	last := c.lastAuthErr
	return &AuthError{
		Mechanism: last.Mechanism,
		Err:       errors.Wrap(sasl.ErrAuthenticationExhausted, last.Err.Error()),
	}
}

func (c *Client) bind(ctx context.Context, resource string) error {
	if !c.features.bind {
		return ErrBindNotSupported
	}
	b := stravaganza.NewBuilder("bind").
		WithAttribute(stravaganza.Namespace, bindNamespace)
	if len(resource) > 0 {
		b.WithChild(stravaganza.NewBuilder("resource").
			WithText(resource).
			Build(),
		)
	}
	iq := xmpputil.MakeIQ(c.newID(), stravaganza.SetType, "", b.Build())
	err := c.iqs.register(iq, func(ctx context.Context, iq *stravaganza.IQ, err error) error {
		if err != nil {
			return nil
		}
		return c.handleBindResult(ctx, iq, resource)
	})
	if err != nil {
		return err
	}
	c.step = awaitingBind
	return c.sendElement(ctx, iq)
}

func (c *Client) handleBindResult(ctx context.Context, iq *stravaganza.IQ, resource string) error {
	if iq.IsError() {
		if !xmpputil.HasStanzaErrorCondition(iq, "conflict") {
			return errors.Errorf("client: resource binding failed: %s", xmpputil.StanzaErrorCondition(iq))
		}
		if len(resource) == 0 || c.bindRetried {
			return ErrBindConflict
		}
		level.Info(c.logger).Log("msg", "requested resource in use, requesting a server assigned one", "resource", resource)

		c.bindRetried = true
		return c.bind(ctx, "")
	}
	bindElem := iq.ChildNamespace("bind", bindNamespace)
	if bindElem == nil || bindElem.Child("jid") == nil {
		return errors.New("client: missing bound jid")
	}
	jd, err := jid.NewWithString(strings.TrimSpace(bindElem.Child("jid").Text()), false)
	if err != nil {
		return errors.Wrap(err, "client: invalid bound jid")
	}
	c.setJID(jd)
	c.ss.SetJID(jd)
	c.flags.setBound()

	level.Info(c.logger).Log("msg", "resource bound", "bound_jid", jd.String())

	if c.features.requiresSession() {
		return c.establishSession(ctx)
	}
	return c.established(ctx)
}

func (c *Client) establishSession(ctx context.Context) error {
	iq := xmpputil.MakeIQ(c.newID(), stravaganza.SetType, "", stravaganza.NewBuilder("session").
		WithAttribute(stravaganza.Namespace, sessionNamespace).
		Build(),
	)
	err := c.iqs.register(iq, func(ctx context.Context, iq *stravaganza.IQ, err error) error {
		if err != nil {
			return nil
		}
		if iq.IsError() {
			return errors.Wrap(ErrSessionFailure, xmpputil.StanzaErrorCondition(iq))
		}
		return c.established(ctx)
	})
	if err != nil {
		return err
	}
	c.step = awaitingSession
	return c.sendElement(ctx, iq)
}

func (c *Client) restartStream(ctx context.Context) error {
	c.features = streamFeatures{}
	_ = c.ss.Reset(c.tr)
	c.step = awaitingHeader

	if err := c.ss.OpenStream(ctx); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func encodeInitialResponse(b []byte) string {
	if len(b) == 0 {
		return "="
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeSASLPayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || s == "=" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func decodeSASLFailure(elem stravaganza.Element) *sasl.RemoteFailureError {
	fe := &sasl.RemoteFailureError{Condition: sasl.NotAuthorized}
	for _, child := range elem.AllChildren() {
		if child.Name() == "text" {
			fe.Text = child.Text()
			continue
		}
		fe.Condition = sasl.Condition(child.Name())
	}
	return fe
}
