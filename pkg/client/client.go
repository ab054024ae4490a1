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
	"crypto/tls"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jackal-xmpp/runqueue/v2"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	streamerror "github.com/jackal-xmpp/stravaganza/v2/errors/stream"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/pkg/errors"

	"github.com/jackal-xmpp/courier/pkg/avatar"
	"github.com/jackal-xmpp/courier/pkg/event"
	xmppparser "github.com/jackal-xmpp/courier/pkg/parser"
	"github.com/jackal-xmpp/courier/pkg/log"
	"github.com/jackal-xmpp/courier/pkg/sasl"
	xmppsession "github.com/jackal-xmpp/courier/pkg/session"
	"github.com/jackal-xmpp/courier/pkg/transport"
	"github.com/jackal-xmpp/courier/pkg/util/crashreporter"
	"github.com/jackal-xmpp/courier/pkg/util/ratelimiter"
	xmpputil "github.com/jackal-xmpp/courier/pkg/util/xmpp"
)

// Client is an XMPP client session.
//
// Every lifecycle mutation runs on a single run queue, so the state machine is
// the sole owner of the connection, the negotiation progress and the queues.
type Client struct {
	cfg       Config
	jd        *jid.JID
	creds     sasl.Credentials
	prefs     []sasl.Mechanism
	tlsCfg    *tls.Config
	dialer    Dialer
	avatars   *avatar.Fetcher
	avatarHnd avatar.Handler
	disp      *event.Dispatcher
	logger    kitlog.Logger
	rq        *runqueue.RunQueue

	newSession func(tr transport.Transport) session
	newID      func() string

	// accessed from the run queue only
	gen          uint64
	tr           transport.Transport
	ss           session
	step         step
	features     streamFeatures
	flags        flags
	policy       sasl.Policy
	auth         sasl.Authenticator
	authAttempts int
	lastAuthErr  *AuthError
	abortCause   error
	bindRetried  bool
	outq         *outQueue
	writerDone   chan struct{}
	pendingQueue []outElement
	iqs          *iqTracker
	bo           *backoff
	waiters      []chan<- error
	shutdown     bool

	mu       sync.RWMutex
	state    State
	boundJID *jid.JID
}

// New returns a new client instance in disconnected state.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	jd := cfg.bareJID()
	prefs, _ := cfg.preference()

	c := &Client{
		cfg:   cfg,
		jd:    jd,
		prefs: prefs,
		creds: sasl.Credentials{
			Identity: jd.Node(),
			AuthzID:  cfg.AuthzID,
			Secret:   sasl.Secret{Password: cfg.Password},
			Domain:   jd.Domain(),

			MaxIterations: cfg.SASL.MaxIterations,
		},
		disp:  event.NewDispatcher(),
		iqs:   newIQTracker(jd),
		bo:    newBackoff(cfg.Reconnect),
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.NewDefaultLogger(cfg.Logger.Level, cfg.Logger.Format)
	}
	c.logger = kitlog.With(c.logger, "jid", jd.String())
	c.tlsCfg = c.clientTLSConfig()

	if c.dialer == nil {
		c.dialer = newDialer(&c.cfg, jd.Domain(), c.tlsCfg)
	}
	c.newSession = func(tr transport.Transport) session {
		return xmppsession.New(jd.String(), tr, xmppsession.Config{
			Domain:        jd.Domain(),
			Lang:          c.cfg.Lang,
			MaxStanzaSize: c.cfg.MaxStanzaSize,
		}, c.logger)
	}
	if !cfg.Avatars.Disabled {
		c.avatars = avatar.NewFetcher(avatar.NewVCardRetriever(c), c.avatarHnd, cfg.Avatars.FetchTimeout, c.logger)
	}
	c.rq = runqueue.New(jd.String())
	return c, nil
}

// Subscribe returns a new event subscription. Events published before subscribing are not delivered.
func (c *Client) Subscribe() *event.Subscription {
	return c.disp.Subscribe()
}

// State returns current session lifecycle state.
func (c *Client) State() State {
	return c.getState()
}

// JID returns the full JID bound to the session, nil if no resource is bound.
func (c *Client) JID() *jid.JID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boundJID
}

// Connect starts a connection cycle and blocks until the session gets established,
// the cycle ends in a terminal disconnection or ctx is done.
// Transient failures are retried in the background according to the reconnection policy.
func (c *Client) Connect(ctx context.Context) error {
	errCh := make(chan error, 1)
	c.rq.Run(func() {
		switch {
		case c.shutdown:
			errCh <- ErrClientShutdown
			return
		case c.getState() == Established:
			errCh <- nil
			return
		}
		c.waiters = append(c.waiters, errCh)

		switch c.getState() {
		case Disconnected, Reconnecting:
			c.connect()
		}
	})
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send enqueues an outbound stanza. Stanzas are written in FIFO order once
// the session is established. The returned channel receives the write result.
func (c *Client) Send(elem stravaganza.Element) <-chan error {
	errCh := make(chan error, 1)
	c.rq.Run(func() {
		if c.shutdown {
			errCh <- ErrClientShutdown
			return
		}
		c.sendOrEnqueueElement(outElement{elem: elem, errCh: errCh})
	})
	return errCh
}

type iqResult struct {
	iq  *stravaganza.IQ
	err error
}

// SendIQ sends a get or set IQ request and waits for its response.
func (c *Client) SendIQ(ctx context.Context, iq stravaganza.Element) (*stravaganza.IQ, error) {
	if !isRequestIQ(iq) {
		return nil, ErrInvalidIQ
	}
	id := iq.Attribute(stravaganza.ID)

	resCh := make(chan iqResult, 1)
	c.rq.Run(func() {
		if c.step != streaming {
			resCh <- iqResult{err: ErrNotEstablished}
			return
		}
		err := c.iqs.register(iq, func(_ context.Context, res *stravaganza.IQ, err error) error {
			resCh <- iqResult{iq: res, err: err}
			return nil
		})
		if err != nil {
			resCh <- iqResult{err: err}
			return
		}
		c.outq.push(outElement{elem: iq})
	})
	select {
	case res := <-resCh:
		return res.iq, res.err
	case <-ctx.Done():
		c.rq.Run(func() {
			select {
			case <-resCh:
				// already answered or never registered
			default:
				c.iqs.cancel(id)
			}
		})
		return nil, ctx.Err()
	}
}

// Shutdown flushes queued stanzas, closes the stream and stops any further reconnection.
// Once shut down, the client cannot be connected again.
func (c *Client) Shutdown(ctx context.Context) error {
	errCh := make(chan error, 1)
	c.rq.Run(func() {
		errCh <- c.shutdownSession(ctx)
	})
	select {
	case err := <-errCh:
		if c.avatars != nil {
			c.avatars.Wait()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) connect() {
	c.bo.cancel()
	c.gen++
	gen := c.gen

	c.setState(Connecting)
	reportConnectionAttempt(c.cfg.Transport)
	level.Info(c.logger).Log("msg", "connecting", "transport", c.cfg.Transport, "attempt", c.bo.attempts()+1)

	go c.dial(gen)
}

func (c *Client) dial(gen uint64) {
	defer crashreporter.RecoverAndReportPanic("client")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	tr, err := c.dialer.Dial(ctx)
	cancel()

	c.rq.Run(func() {
		if gen != c.gen || c.shutdown {
			if tr != nil {
				_ = tr.Close()
			}
			return
		}
		if err != nil {
			c.fail(&TransportError{Err: err})
			return
		}
		if err := c.start(tr); err != nil {
			c.fail(err)
		}
	})
}

func (c *Client) start(tr transport.Transport) error {
	c.tr = tr
	if rl := c.cfg.ReadRateLimit; rl.Rate > 0 {
		if err := tr.SetReadRateLimiter(ratelimiter.NewLimiter(rl.Rate, rl.Burst)); err != nil {
			return &TransportError{Err: err}
		}
	}
	if tr.Secured() {
		c.flags.setSecured() // direct TLS
	}
	c.ss = c.newSession(tr)
	c.step = awaitingHeader

	ctx, cancel := c.requestContext()
	defer cancel()

	if err := c.ss.OpenStream(ctx); err != nil {
		return &TransportError{Err: err}
	}
	go c.readLoop(c.gen, c.ss)
	return nil
}

func (c *Client) readLoop(gen uint64, ss session) {
	defer crashreporter.RecoverAndReportPanic("client")

	for {
		elem, sErr := ss.Receive()
		if !c.handleSessionResult(gen, elem, sErr) {
			return
		}
	}
}

// handleSessionResult processes a session read result on the run queue.
// It reports whether the reader should keep reading.
func (c *Client) handleSessionResult(gen uint64, elem stravaganza.Element, sErr error) bool {
	var keepReading bool

	doneCh := make(chan struct{})
	c.rq.Run(func() {
		defer close(doneCh)

		if gen != c.gen {
			return
		}
		switch {
		case sErr == nil && elem != nil:
			if err := c.handleElement(elem); err != nil {
				level.Warn(c.logger).Log("msg", "failed to process incoming element", "err", err)
				c.fail(err)
				return
			}
			keepReading = true

		case sErr != nil:
			var mErr *xmppsession.MalformedElementError
			if errors.As(sErr, &mErr) {
				level.Warn(c.logger).Log("msg", "dropped malformed stanza", "err", mErr.Err)
				c.disp.Publish(event.Other{Element: mErr.Element, Err: mErr})
				keepReading = true
				return
			}
			c.fail(mapSessionError(sErr))
		}
	})
	<-doneCh
	return keepReading
}

func (c *Client) handleElement(elem stravaganza.Element) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	var err error
	t0 := time.Now()
	switch c.step {
	case awaitingHeader:
		c.step = awaitingFeatures
	case awaitingFeatures:
		err = c.handleFeatures(ctx, elem)
	case awaitingProceed:
		err = c.handleProceed(ctx, elem)
	case awaitingSASL:
		err = c.handleSASL(ctx, elem)
	default:
		err = c.handleStanza(ctx, elem)
	}
	reportIncomingRequest(
		elem.Name(),
		elem.Attribute(stravaganza.Type),
		time.Since(t0).Seconds(),
	)
	return err
}

func (c *Client) handleStanza(ctx context.Context, elem stravaganza.Element) error {
	switch stanza := elem.(type) {
	case *stravaganza.IQ:
		return c.handleIQ(ctx, stanza)

	case *stravaganza.Message, *stravaganza.Presence:
		if c.step != streaming {
			return streamerror.E(streamerror.NotAuthorized)
		}
		c.dispatch(stanza)
		return nil

	default:
		if c.step != streaming {
			return streamerror.E(streamerror.UnsupportedStanzaType)
		}
		c.disp.Publish(event.Other{Element: elem})
		return nil
	}
}

func (c *Client) handleIQ(ctx context.Context, iq *stravaganza.IQ) error {
	handled, err := c.iqs.resolve(ctx, iq)
	if handled || err != nil {
		return err
	}
	if c.step != streaming {
		return streamerror.E(streamerror.NotAuthorized)
	}
	switch {
	case iq.IsSet() && iq.ChildNamespace("query", event.RosterNamespace) != nil:
		return c.handleRosterPush(ctx, iq)

	case iq.IsGet() || iq.IsSet():
		c.disp.Publish(event.Other{Element: iq})
		return c.sendElement(ctx, xmpputil.MakeErrorStanza(iq, stanzaerror.ServiceUnavailable))

	default:
		// unsolicited response
		c.disp.Publish(event.Other{Element: iq})
		return nil
	}
}

func (c *Client) handleRosterPush(ctx context.Context, iq *stravaganza.IQ) error {
	if iq.FromJID().String() != c.jd.String() {
		level.Warn(c.logger).Log("msg", "ignored roster push from foreign entity", "from", iq.FromJID().String())
		return nil
	}
	rc, err := event.NewRosterChange(iq.ChildNamespace("query", event.RosterNamespace), false)
	if err != nil {
		c.disp.Publish(event.Other{Element: iq, Err: err})
		return c.sendElement(ctx, xmpputil.MakeErrorStanza(iq, stanzaerror.BadRequest))
	}
	c.disp.Publish(rc)
	return c.sendElement(ctx, xmpputil.MakeResultIQ(iq, nil))
}

func (c *Client) dispatch(stanza stravaganza.Element) {
	ev := event.Classify(stanza)
	if pc, ok := ev.(event.PresenceChange); ok && len(pc.AvatarHash) > 0 && c.avatars != nil {
		c.avatars.Fetch(pc.From.ToBareJID(), pc.AvatarHash)
	}
	c.disp.Publish(ev)
}

func (c *Client) requestRoster() error {
	iq := xmpputil.MakeIQ(c.newID(), stravaganza.GetType, "", stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, event.RosterNamespace).
		Build(),
	)
	err := c.iqs.register(iq, func(_ context.Context, iq *stravaganza.IQ, err error) error {
		switch {
		case err != nil:
			return nil
		case iq.IsError():
			level.Warn(c.logger).Log("msg", "roster request failed", "condition", xmpputil.StanzaErrorCondition(iq))
			return nil
		}
		rc, err := event.NewRosterChange(iq.ChildNamespace("query", event.RosterNamespace), true)
		if err != nil {
			c.disp.Publish(event.Other{Element: iq, Err: err})
			return nil
		}
		c.disp.Publish(rc)
		return nil
	})
	if err != nil {
		return err
	}
	c.outq.push(outElement{elem: iq})
	return nil
}

func (c *Client) established(_ context.Context) error {
	c.step = streaming
	c.setState(Established)
	c.bo.reset()
	c.bindRetried = false
	reportConnectionEstablished()

	c.outq = newOutQueue()
	c.writerDone = make(chan struct{})
	go c.writeLoop(c.gen, c.ss, c.outq, c.writerDone)

	if err := c.requestRoster(); err != nil {
		return err
	}
	c.outq.push(outElement{elem: stravaganza.NewBuilder("presence").Build()})

	// send pending elements
	for _, e := range c.pendingQueue {
		c.outq.push(e)
	}
	c.pendingQueue = nil

	jd := c.JID()
	level.Info(c.logger).Log("msg", "session established", "bound_jid", jd.String())

	c.disp.Publish(event.Connected{JID: jd})
	c.notifyWaiters(nil)
	return nil
}

func (c *Client) writeLoop(gen uint64, ss session, q *outQueue, doneCh chan<- struct{}) {
	defer crashreporter.RecoverAndReportPanic("client")
	defer close(doneCh)
	for {
		e, ok := q.pop()
		if !ok {
			return
		}
		ctx, cancel := c.requestContext()
		err := ss.Send(ctx, e.elem)
		cancel()

		e.done(err)
		if err != nil {
			c.rq.Run(func() {
				if gen == c.gen {
					c.fail(&TransportError{Err: err})
				}
			})
			return
		}
		reportOutgoingRequest(e.elem.Name(), e.elem.Attribute(stravaganza.Type))
	}
}

func (c *Client) sendOrEnqueueElement(e outElement) {
	switch c.step {
	case streaming:
		c.outq.push(e)
	default:
		c.pendingQueue = append(c.pendingQueue, e)
	}
}

func (c *Client) sendElement(ctx context.Context, elem stravaganza.Element) error {
	if c.step == streaming {
		c.outq.push(outElement{elem: elem})
		return nil
	}
	if err := c.ss.Send(ctx, elem); err != nil {
		return &TransportError{Err: err}
	}
	reportOutgoingRequest(elem.Name(), elem.Attribute(stravaganza.Type))
	return nil
}

// fail tears down the current connection and routes the session into
// Reconnecting or into a terminal Disconnected state.
func (c *Client) fail(err error) {
	c.teardown(err, false)

	var authErr *AuthError
	if errors.As(err, &authErr) {
		c.disp.Publish(event.AuthenticationFailed{Mechanism: authErr.Mechanism, Cause: authErr.Err})
	}
	if c.cfg.Reconnect.Disabled || sasl.IsFatal(err) {
		level.Warn(c.logger).Log("msg", "disconnected", "err", err)

		c.setState(Disconnected)
		c.disp.Publish(event.Disconnected{Reason: err})
		c.notifyWaiters(err)
		return
	}
	c.setState(Reconnecting)

	gen := c.gen
	d := c.bo.schedule(func() {
		c.rq.Run(func() {
			if gen == c.gen && c.getState() == Reconnecting {
				c.connect()
			}
		})
	})
	reportReconnectScheduled()
	level.Info(c.logger).Log("msg", "connection lost, reconnection scheduled", "err", err, "delay", d)

	c.disp.Publish(event.Disconnected{Reason: err, Reconnecting: true})
}

func (c *Client) shutdownSession(ctx context.Context) error {
	if c.shutdown {
		return nil
	}
	c.shutdown = true
	c.bo.cancel()

	leftovers := c.teardownWithContext(ctx, ErrClientShutdown, true)
	for _, e := range append(leftovers, c.pendingQueue...) {
		e.done(ErrClientShutdown)
	}
	c.pendingQueue = nil

	c.setState(Disconnected)
	level.Info(c.logger).Log("msg", "client shut down")

	c.disp.Publish(event.Disconnected{})
	c.notifyWaiters(ErrClientShutdown)
	c.disp.Close()
	return nil
}

// teardown releases every resource bound to the current connection.
// Undelivered stanzas enqueued by the caller are kept for the next connection.
func (c *Client) teardown(err error, flush bool) {
	ctx, cancel := c.requestContext()
	defer cancel()

	leftovers := c.teardownWithContext(ctx, err, flush)

	var requeued []outElement
	for _, e := range leftovers {
		if e.errCh != nil {
			requeued = append(requeued, e)
		}
	}
	c.pendingQueue = append(requeued, c.pendingQueue...)
}

func (c *Client) teardownWithContext(ctx context.Context, err error, flush bool) []outElement {
	c.gen++ // discard any in-flight reader, writer or timer callback

	leftovers, writerStopped := c.stopWriter(ctx, flush)
	if c.ss != nil && writerStopped {
		var streamErr *streamerror.Error
		var trErr *TransportError
		switch {
		case errors.As(err, &streamErr):
			_ = c.ss.Send(ctx, streamErr.Element())
			_ = c.ss.Close(ctx)
		case !errors.As(err, &trErr):
			_ = c.ss.Close(ctx)
		}
	}
	if c.auth != nil {
		c.auth.Abort()
		c.auth = nil
	}
	c.iqs.failAll(err)

	if c.tr != nil {
		_ = c.tr.Close()
	}
	c.tr = nil
	c.ss = nil
	c.step = awaitingHeader
	c.features = streamFeatures{}
	c.flags.reset()
	c.authAttempts = 0
	c.lastAuthErr = nil
	c.abortCause = nil
	c.bindRetried = false
	c.setJID(nil)

	return leftovers
}

// stopWriter stops the connection writer. When flush is set every queued element is
// written before stopping. It returns the unwritten elements and whether the writer exited.
func (c *Client) stopWriter(ctx context.Context, flush bool) ([]outElement, bool) {
	if c.outq == nil {
		return nil, true
	}
	q := c.outq
	c.outq = nil

	var leftovers []outElement
	if flush {
		q.close()
	} else {
		leftovers = q.drain()
	}
	var stopped bool
	select {
	case <-c.writerDone:
		stopped = true
	case <-ctx.Done():
	}
	return append(leftovers, q.drain()...), stopped
}

func (c *Client) notifyWaiters(err error) {
	for _, w := range c.waiters {
		w <- err
	}
	c.waiters = nil
}

func (c *Client) clientTLSConfig() *tls.Config {
	var cfg *tls.Config
	if c.tlsCfg != nil {
		cfg = c.tlsCfg.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if len(cfg.ServerName) == 0 {
		cfg.ServerName = c.jd.Domain()
		if len(c.cfg.TLS.ServerName) > 0 {
			cfg.ServerName = c.cfg.TLS.ServerName
		}
	}
	if c.cfg.TLS.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	reportState(state)
}

func (c *Client) getState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setJID(jd *jid.JID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundJID = jd
}

func mapSessionError(err error) error {
	var streamErr *streamerror.Error
	var remoteErr *xmppsession.RemoteStreamError
	switch {
	case errors.As(err, &streamErr), errors.As(err, &remoteErr):
		return err
	case errors.Is(err, xmppparser.ErrStreamClosedByPeer):
		return err
	default:
		return &TransportError{Err: err}
	}
}

func isRequestIQ(elem stravaganza.Element) bool {
	if elem.Name() != "iq" || len(elem.Attribute(stravaganza.ID)) == 0 {
		return false
	}
	switch elem.Attribute(stravaganza.Type) {
	case stravaganza.GetType, stravaganza.SetType:
		return true
	}
	return false
}
