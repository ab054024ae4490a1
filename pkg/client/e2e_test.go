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
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jackal-xmpp/courier/internal/scramserver"
	"github.com/jackal-xmpp/courier/pkg/event"
	xmppparser "github.com/jackal-xmpp/courier/pkg/parser"
	"github.com/jackal-xmpp/courier/pkg/sasl"
	"github.com/jackal-xmpp/courier/pkg/transport"
)

const (
	testServerHeader = `<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="%s" from="jackal.im" version="1.0">`

	testSASLFeatures = `<stream:features><mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>SCRAM-SHA-256</mechanism><mechanism>PLAIN</mechanism></mechanisms></stream:features>`
	testBindFeatures = `<stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/></stream:features>`
)

// fakeServer plays the server side of a c2s stream over an in-memory connection.
type fakeServer struct {
	conn         net.Conn
	pr           *xmppparser.Parser
	scram        *scramserver.Server
	badSignature bool
}

func newFakeServer(conn net.Conn, badSignature bool) *fakeServer {
	return &fakeServer{
		conn:         conn,
		pr:           xmppparser.New(conn, xmppparser.SocketStream, 1<<16),
		scram:        scramserver.New(sha256.New, "ortuman", "1234", []byte("QSXCR+Q6sek8bf92"), 4096),
		badSignature: badSignature,
	}
}

func (s *fakeServer) serve() error {
	defer func() { _ = s.conn.Close() }()

	if _, err := s.expect("stream:stream"); err != nil {
		return err
	}
	if err := s.write(fmt.Sprintf(testServerHeader, "s1") + testSASLFeatures); err != nil {
		return err
	}
	auth, err := s.expect("auth")
	if err != nil {
		return err
	}
	if mech := auth.Attribute("mechanism"); mech != "SCRAM-SHA-256" {
		return fmt.Errorf("unexpected mechanism: %s", mech)
	}
	clientFirst, err := base64.StdEncoding.DecodeString(auth.Text())
	if err != nil {
		return err
	}
	serverFirst, err := s.scram.First(clientFirst)
	if err != nil {
		return err
	}
	if err := s.write(saslPayload("challenge", serverFirst)); err != nil {
		return err
	}
	resp, err := s.expect("response")
	if err != nil {
		return err
	}
	clientFinal, err := base64.StdEncoding.DecodeString(resp.Text())
	if err != nil {
		return err
	}
	serverFinal, err := s.scram.Final(clientFinal)
	if err != nil {
		return err
	}
	if s.badSignature {
		serverFinal = []byte("v=" + base64.StdEncoding.EncodeToString(make([]byte, sha256.Size)))
	}
	if err := s.write(saslPayload("success", serverFinal)); err != nil {
		return err
	}
	if s.badSignature {
		return s.awaitClose()
	}

	// restarted stream
	if _, err := s.expect("stream:stream"); err != nil {
		return err
	}
	if err := s.write(fmt.Sprintf(testServerHeader, "s2") + testBindFeatures); err != nil {
		return err
	}
	bindIQ, err := s.expect("iq")
	if err != nil {
		return err
	}
	if err := s.write(fmt.Sprintf(
		`<iq id="%s" type="result"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>ortuman@jackal.im/balcony</jid></bind></iq>`,
		bindIQ.Attribute(stravaganza.ID),
	)); err != nil {
		return err
	}
	for {
		elem, err := s.pr.Parse()
		switch {
		case errors.Is(err, xmppparser.ErrStreamClosedByPeer):
			return nil
		case err != nil:
			return err
		}
		if elem.Name() == "iq" && elem.ChildNamespace("query", event.RosterNamespace) != nil {
			err := s.write(fmt.Sprintf(
				`<iq id="%s" type="result"><query xmlns="jabber:iq:roster" ver="v7"><item jid="noelia@jackal.im" subscription="both"><group>Friends</group></item></query></iq>`,
				elem.Attribute(stravaganza.ID),
			))
			if err != nil {
				return err
			}
		}
	}
}

func (s *fakeServer) expect(name string) (stravaganza.Element, error) {
	elem, err := s.pr.Parse()
	if err != nil {
		return nil, err
	}
	if elem.Name() != name {
		return nil, fmt.Errorf("expected <%s> element, got <%s>", name, elem.Name())
	}
	return elem, nil
}

func (s *fakeServer) awaitClose() error {
	for {
		_, err := s.pr.Parse()
		switch {
		case errors.Is(err, xmppparser.ErrStreamClosedByPeer), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
	}
}

func (s *fakeServer) write(str string) error {
	_, err := io.WriteString(s.conn, str)
	return err
}

func saslPayload(name string, b []byte) string {
	return fmt.Sprintf(`<%s xmlns="urn:ietf:params:xml:ns:xmpp-sasl">%s</%s>`, name, base64.StdEncoding.EncodeToString(b), name)
}

func startFakeServer(t *testing.T, badSignature bool) (Dialer, <-chan error) {
	t.Helper()

	c1, c2 := net.Pipe()
	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- newFakeServer(c2, badSignature).serve()
	}()
	dialer := DialerFunc(func(_ context.Context) (transport.Transport, error) {
		return transport.NewSocketTransport(c1, 0), nil
	})
	return dialer, srvErrCh
}

func TestClient_ConnectScram(t *testing.T) {
	// given
	dialer, srvErrCh := startFakeServer(t, false)

	cfg := Config{
		JID:      "ortuman@jackal.im",
		Password: "1234",
		Resource: "balcony",
	}
	cfg.TLS.Optional = true
	cfg.Reconnect.Disabled = true
	cfg.Avatars.Disabled = true

	c, err := New(cfg, WithLogger(kitlog.NewNopLogger()), WithDialer(dialer))
	require.Nil(t, err)

	sub := c.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// when
	err = c.Connect(ctx)

	// then
	require.Nil(t, err)
	require.Equal(t, Established, c.State())
	require.Equal(t, "ortuman@jackal.im/balcony", c.JID().String())

	ev := nextEvent(t, sub)
	connected, ok := ev.(event.Connected)
	require.True(t, ok)
	require.Equal(t, "ortuman@jackal.im/balcony", connected.JID.String())

	ev = nextEvent(t, sub)
	rc, ok := ev.(event.RosterChange)
	require.True(t, ok)
	require.True(t, rc.Snapshot)
	require.Equal(t, "v7", rc.Version)
	require.Len(t, rc.Items, 1)
	require.Equal(t, []string{"Friends"}, rc.Items[0].Groups)

	// when
	err = c.Shutdown(ctx)

	// then
	require.Nil(t, err)
	require.Equal(t, Disconnected, c.State())

	select {
	case srvErr := <-srvErrCh:
		require.Nil(t, srvErr)
	case <-time.After(time.Second):
		require.Fail(t, "server did not finish")
	}
}

func TestClient_ConnectScramBadServerSignature(t *testing.T) {
	// given
	dialer, srvErrCh := startFakeServer(t, true)

	cfg := Config{
		JID:      "ortuman@jackal.im",
		Password: "1234",
		Resource: "balcony",
	}
	cfg.TLS.Optional = true
	cfg.Avatars.Disabled = true

	c, err := New(cfg, WithLogger(kitlog.NewNopLogger()), WithDialer(dialer))
	require.Nil(t, err)

	sub := c.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// when
	err = c.Connect(ctx)

	// then
	require.NotNil(t, err)
	require.True(t, errors.Is(err, sasl.ErrServerSignatureMismatch))
	require.Equal(t, Disconnected, c.State())

	ev := nextEvent(t, sub)
	authFailed, ok := ev.(event.AuthenticationFailed)
	require.True(t, ok)
	require.Equal(t, sasl.ScramSHA256, authFailed.Mechanism)

	ev = nextEvent(t, sub)
	disconnected, ok := ev.(event.Disconnected)
	require.True(t, ok)
	require.False(t, disconnected.Reconnecting)

	select {
	case srvErr := <-srvErrCh:
		require.Nil(t, srvErr)
	case <-time.After(time.Second):
		require.Fail(t, "server did not finish")
	}
	require.Nil(t, c.Shutdown(context.Background()))
}
