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

package session

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	streamerror "github.com/jackal-xmpp/stravaganza/v2/errors/stream"
	"github.com/jackal-xmpp/stravaganza/v2/jid"

	xmppparser "github.com/jackal-xmpp/courier/pkg/parser"
	"github.com/jackal-xmpp/courier/pkg/transport"
	"github.com/jackal-xmpp/courier/pkg/util/ratelimiter"
)

const envLogStanzas = "COURIER_LOG_STANZAS"

var logStanzas bool

func init() {
	logStanzas = os.Getenv(envLogStanzas) == "on"
}

const (
	jabberClientNamespace = "jabber:client"
	streamNamespace       = "http://etherx.jabber.org/streams"
	framingNamespace      = "urn:ietf:params:xml:ns:xmpp-framing"
)

var (
	errAlreadyOpened = errors.New("session: already opened")
	errAlreadyClosed = errors.New("session: already closed")
)

// RemoteStreamError is returned by Receive when the server sends a stream error.
type RemoteStreamError struct {
	Condition string
	Text      string
}

func newRemoteStreamError(elem stravaganza.Element) *RemoteStreamError {
	var se RemoteStreamError
	for _, child := range elem.AllChildren() {
		if child.Name() == "text" {
			se.Text = child.Text()
			continue
		}
		if len(se.Condition) == 0 {
			se.Condition = child.Name()
		}
	}
	if len(se.Condition) == 0 {
		se.Condition = "undefined-condition"
	}
	return &se
}

func (e *RemoteStreamError) Error() string {
	if len(e.Text) > 0 {
		return fmt.Sprintf("session: remote stream error: %s (%s)", e.Condition, e.Text)
	}
	return fmt.Sprintf("session: remote stream error: %s", e.Condition)
}

// MalformedElementError is returned by Receive when a top-level stanza cannot be validated.
// The stream remains usable after this error.
type MalformedElementError struct {
	Element stravaganza.Element
	Err     error
}

func (e *MalformedElementError) Error() string {
	return fmt.Sprintf("session: malformed <%s> element: %v", e.Element.Name(), e.Err)
}

func (e *MalformedElementError) Unwrap() error { return e.Err }

// Config structure is used to establish XMPP session configuration.
type Config struct {
	// Domain defines the XMPP domain the stream is opened against.
	Domain string

	// Lang defines the default stream language.
	Lang string

	// MaxStanzaSize defines the maximum stanza size that can be read from the session transport.
	MaxStanzaSize int
}

// Session represents a client-to-server XMPP session.
type Session struct {
	id     string
	cfg    Config
	tr     transport.Transport
	pr     xmppParser
	logger kitlog.Logger

	streamID string
	jd       jid.JID
	opened   bool
	started  bool
}

// New creates a new session instance.
func New(identifier string, tr transport.Transport, cfg Config, logger kitlog.Logger) *Session {
	ss := &Session{
		id:     identifier,
		cfg:    cfg,
		tr:     tr,
		pr:     getParser(tr, cfg.MaxStanzaSize),
		logger: logger,
	}
	if domainJID, err := jid.New("", cfg.Domain, "", true); err == nil {
		ss.jd = *domainJID
	}
	return ss
}

// StreamID returns the stream identifier assigned by the server.
func (ss *Session) StreamID() string {
	return ss.streamID
}

// SetJID updates the session JID used to address incoming stanzas lacking from or to attributes.
func (ss *Session) SetJID(jd *jid.JID) {
	ss.jd = *jd
}

// OpenStream sends the initial stream header.
func (ss *Session) OpenStream(ctx context.Context) error {
	if ss.opened {
		return errAlreadyOpened
	}
	buf := &strings.Builder{}

	var elem stravaganza.Element
	switch ss.tr.Type() {
	case transport.Socket:
		b := stravaganza.NewBuilder("stream:stream").
			WithAttribute(stravaganza.Namespace, jabberClientNamespace).
			WithAttribute(stravaganza.StreamNamespace, streamNamespace).
			WithAttribute(stravaganza.To, ss.cfg.Domain).
			WithAttribute(stravaganza.Version, "1.0")
		if len(ss.cfg.Lang) > 0 {
			b.WithAttribute("xml:lang", ss.cfg.Lang)
		}
		elem = b.Build()
		buf.WriteString(`<?xml version="1.0"?>`)
		if err := elem.ToXML(buf, false); err != nil {
			return err
		}

	case transport.WebSocket:
		b := stravaganza.NewBuilder("open").
			WithAttribute(stravaganza.Namespace, framingNamespace).
			WithAttribute(stravaganza.To, ss.cfg.Domain).
			WithAttribute(stravaganza.Version, "1.0")
		if len(ss.cfg.Lang) > 0 {
			b.WithAttribute("xml:lang", ss.cfg.Lang)
		}
		elem = b.Build()
		if err := elem.ToXML(buf, true); err != nil {
			return err
		}
	}
	if err := ss.sendString(ctx, buf.String()); err != nil {
		return err
	}
	ss.opened = true
	return nil
}

// Close closes session sending the proper XMPP payload.
func (ss *Session) Close(ctx context.Context) error {
	if !ss.opened {
		return errAlreadyClosed
	}
	var outStr string
	switch ss.tr.Type() {
	case transport.Socket:
		outStr = "</stream:stream>"
	case transport.WebSocket:
		outStr = fmt.Sprintf(`<close xmlns="%s"/>`, framingNamespace)
	}
	if err := ss.sendString(ctx, outStr); err != nil {
		return err
	}
	ss.opened = false
	ss.started = false
	return nil
}

// Send writes an XML element to the underlying session transport.
func (ss *Session) Send(ctx context.Context, elem stravaganza.Element) error {
	if logStanzas {
		level.Debug(ss.logger).Log("msg", fmt.Sprintf("SND(%s): %v", ss.id, elem))
	}
	ss.setWriteDeadline(ctx)
	if err := elem.ToXML(ss.tr, true); err != nil {
		return err
	}
	return ss.tr.Flush()
}

// Receive returns next incoming session element.
//
// The first element after opening or resetting a stream is the server stream header.
// Stanzas are returned as typed stravaganza stanzas, any other element is returned as is.
func (ss *Session) Receive() (stravaganza.Element, error) {
	elem, err := ss.pr.Parse()
	if err != nil {
		return nil, mapErrorToSessionError(err)
	}
	if logStanzas {
		level.Debug(ss.logger).Log("msg", fmt.Sprintf("RCV(%s): %v", ss.id, elem))
	}
	if elem.Name() == "stream:error" {
		return nil, newRemoteStreamError(elem)
	}
	if !ss.started {
		if err := ss.validateStreamElement(elem); err != nil {
			return nil, err
		}
		ss.streamID = elem.Attribute(stravaganza.ID)
		ss.started = true
		return elem, nil
	}
	if !stravaganza.IsStanza(elem) {
		return elem, nil
	}
	return ss.buildStanza(elem)
}

// Reset resets session internal state, usually after a stream restart.
func (ss *Session) Reset(tr transport.Transport) error {
	ss.tr = tr
	ss.pr = getParser(tr, ss.cfg.MaxStanzaSize)
	ss.streamID = ""
	ss.opened = false
	ss.started = false
	return nil
}

func (ss *Session) sendString(ctx context.Context, str string) error {
	if logStanzas {
		level.Debug(ss.logger).Log("msg", fmt.Sprintf("SND(%s): %v", ss.id, str))
	}
	ss.setWriteDeadline(ctx)
	_, err := ss.tr.WriteString(str)
	if err != nil {
		return err
	}
	return ss.tr.Flush()
}

func (ss *Session) validateStreamElement(elem stravaganza.Element) error {
	switch ss.tr.Type() {
	case transport.Socket:
		if elem.Name() != "stream:stream" {
			return streamerror.E(streamerror.UnsupportedStanzaType)
		}
		ns := elem.Attribute(stravaganza.Namespace)
		streamNs := elem.Attribute(stravaganza.StreamNamespace)
		if ns != jabberClientNamespace || streamNs != streamNamespace {
			return streamerror.E(streamerror.InvalidNamespace)
		}

	case transport.WebSocket:
		if elem.Name() != "open" {
			return streamerror.E(streamerror.UnsupportedStanzaType)
		}
		if elem.Attribute(stravaganza.Namespace) != framingNamespace {
			return streamerror.E(streamerror.InvalidNamespace)
		}
	}
	if elem.Attribute(stravaganza.Version) != "1.0" {
		return streamerror.E(streamerror.UnsupportedVersion)
	}
	return nil
}

func (ss *Session) buildStanza(elem stravaganza.Element) (stravaganza.Element, error) {
	if ns := elem.Attribute(stravaganza.Namespace); len(ns) > 0 && ns != jabberClientNamespace {
		return nil, &MalformedElementError{Element: elem, Err: fmt.Errorf("invalid namespace '%s'", ns)}
	}
	fromJID, toJID, err := ss.extractAddresses(elem)
	if err != nil {
		return nil, &MalformedElementError{Element: elem, Err: err}
	}
	sb := stravaganza.NewBuilderFromElement(elem).
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, toJID.String()).
		WithoutAttribute(stravaganza.Namespace)

	var stanza stravaganza.Element
	switch elem.Name() {
	case "iq":
		stanza, err = sb.BuildIQ()
	case "presence":
		stanza, err = sb.BuildPresence()
	case "message":
		stanza, err = sb.BuildMessage()
	}
	if err != nil {
		return nil, &MalformedElementError{Element: elem, Err: err}
	}
	return stanza, nil
}

// extractAddresses resolves stanza addresses. An absent 'from' denotes the account itself
// and an absent 'to' denotes the currently bound JID.
func (ss *Session) extractAddresses(elem stravaganza.Element) (fromJID *jid.JID, toJID *jid.JID, err error) {
	if from := elem.Attribute(stravaganza.From); len(from) > 0 {
		fromJID, err = jid.NewWithString(from, false)
		if err != nil {
			return nil, nil, err
		}
	} else {
		fromJID = ss.jd.ToBareJID()
	}
	if to := elem.Attribute(stravaganza.To); len(to) > 0 {
		toJID, err = jid.NewWithString(to, false)
		if err != nil {
			return nil, nil, err
		}
	} else {
		jd := ss.jd
		toJID = &jd
	}
	return fromJID, toJID, nil
}

func (ss *Session) setWriteDeadline(ctx context.Context) {
	d, ok := ctx.Deadline()
	if !ok {
		return
	}
	_ = ss.tr.SetWriteDeadline(d)
}

func getParser(tr transport.Transport, maxStanzaSize int) *xmppparser.Parser {
	var pm xmppparser.ParsingMode
	switch tr.Type() {
	case transport.Socket:
		pm = xmppparser.SocketStream
	case transport.WebSocket:
		pm = xmppparser.FramedStream
	}
	return xmppparser.New(tr, pm, maxStanzaSize)
}

func mapErrorToSessionError(err error) error {
	switch err {
	case ratelimiter.ErrReadLimitExceeded:
		se := streamerror.E(streamerror.PolicyViolation)
		se.Err = err
		return se

	case xmppparser.ErrTooLargeStanza:
		se := streamerror.E(streamerror.PolicyViolation)
		se.Err = err
		se.ApplicationElement = stravaganza.NewBuilder("stanza-too-big").
			WithAttribute(stravaganza.Namespace, "urn:xmpp:errors").
			Build()
		return se

	default:
		switch err := err.(type) {
		case *xml.SyntaxError:
			se := streamerror.E(streamerror.InvalidXML)
			se.Err = err
			return se

		case net.Error:
			if !err.Timeout() {
				return err
			}
			se := streamerror.E(streamerror.ConnectionTimeout)
			se.Err = err
			return se

		default:
			return err
		}
	}
}
