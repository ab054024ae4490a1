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
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	streamerror "github.com/jackal-xmpp/stravaganza/v2/errors/stream"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/stretchr/testify/require"

	xmppparser "github.com/jackal-xmpp/courier/pkg/parser"
	"github.com/jackal-xmpp/courier/pkg/transport"
	"github.com/jackal-xmpp/courier/pkg/util/ratelimiter"
)

func TestSession_OpenStream(t *testing.T) {
	var tcs = map[string]struct {
		trType         transport.Type
		lang           string
		expectedOutput string
	}{
		"Socket": {
			trType:         transport.Socket,
			expectedOutput: `<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" to="jackal.im" version="1.0">`,
		},
		"SocketWithLang": {
			trType:         transport.Socket,
			lang:           "en",
			expectedOutput: `<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" to="jackal.im" version="1.0" xml:lang="en">`,
		},
		"WebSocket": {
			trType:         transport.WebSocket,
			expectedOutput: `<open xmlns="urn:ietf:params:xml:ns:xmpp-framing" to="jackal.im" version="1.0"/>`,
		},
	}
	for tn, tc := range tcs {
		t.Run(tn, func(t *testing.T) {
			// given
			buf := bytes.NewBuffer(nil)

			trMock := &transportMock{}
			trMock.TypeFunc = func() transport.Type { return tc.trType }
			trMock.FlushFunc = func() error { return nil }
			trMock.WriteStringFunc = func(s string) (int, error) {
				return buf.WriteString(s)
			}
			ss := Session{
				id:  "ss-1",
				cfg: Config{Domain: "jackal.im", Lang: tc.lang, MaxStanzaSize: 4096},
				tr:  trMock,
				pr:  &xmppParserMock{},
			}

			// when
			err := ss.OpenStream(context.Background())

			// then
			require.Nil(t, err)
			require.Equal(t, tc.expectedOutput, buf.String())

			require.Equal(t, errAlreadyOpened, ss.OpenStream(context.Background()))
		})
	}
}

func TestSession_Close(t *testing.T) {
	var tcs = map[string]struct {
		trType         transport.Type
		expectedOutput string
	}{
		"Socket": {
			trType:         transport.Socket,
			expectedOutput: `</stream:stream>`,
		},
		"WebSocket": {
			trType:         transport.WebSocket,
			expectedOutput: `<close xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`,
		},
	}
	for tn, tc := range tcs {
		t.Run(tn, func(t *testing.T) {
			// given
			buf := bytes.NewBuffer(nil)

			trMock := &transportMock{}
			trMock.TypeFunc = func() transport.Type { return tc.trType }
			trMock.FlushFunc = func() error { return nil }
			trMock.WriteStringFunc = func(s string) (int, error) {
				return buf.WriteString(s)
			}
			ss := Session{
				id:     "ss-1",
				cfg:    Config{Domain: "jackal.im", MaxStanzaSize: 4096},
				tr:     trMock,
				pr:     &xmppParserMock{},
				opened: true,
			}

			// when
			err := ss.Close(context.Background())

			// then
			require.Nil(t, err)
			require.Equal(t, tc.expectedOutput, buf.String())

			require.Equal(t, errAlreadyClosed, ss.Close(context.Background()))
		})
	}
}

func TestSession_Send(t *testing.T) {
	// given
	buf := bytes.NewBuffer(nil)

	trMock := &transportMock{}
	trMock.FlushFunc = func() error { return nil }
	trMock.WriteFunc = func(p []byte) (int, error) { return buf.Write(p) }
	trMock.WriteStringFunc = func(s string) (int, error) { return buf.WriteString(s) }
	trMock.SetWriteDeadlineFunc = func(_ time.Time) error { return nil }

	ss := Session{
		id:     "ss-1",
		cfg:    Config{Domain: "jackal.im", MaxStanzaSize: 4096},
		tr:     trMock,
		pr:     &xmppParserMock{},
		opened: true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// when
	err := ss.Send(ctx, stravaganza.NewBuilder("presence").Build())

	// then
	require.Nil(t, err)
	require.Equal(t, `<presence/>`, buf.String())
	require.Len(t, trMock.FlushCalls(), 1)
	require.Len(t, trMock.SetWriteDeadlineCalls(), 1)
}

func TestSession_ReceiveStreamHeader(t *testing.T) {
	var tcs = map[string]struct {
		trType         transport.Type
		header         stravaganza.Element
		expectErr      bool
		expectedReason streamerror.Reason
		expectedID     string
	}{
		"Socket": {
			trType: transport.Socket,
			header: stravaganza.NewBuilder("stream:stream").
				WithAttribute(stravaganza.Namespace, jabberClientNamespace).
				WithAttribute(stravaganza.StreamNamespace, streamNamespace).
				WithAttribute(stravaganza.From, "jackal.im").
				WithAttribute(stravaganza.ID, "stm-1").
				WithAttribute(stravaganza.Version, "1.0").
				Build(),
			expectedID: "stm-1",
		},
		"WebSocket": {
			trType: transport.WebSocket,
			header: stravaganza.NewBuilder("open").
				WithAttribute(stravaganza.Namespace, framingNamespace).
				WithAttribute(stravaganza.From, "jackal.im").
				WithAttribute(stravaganza.ID, "stm-2").
				WithAttribute(stravaganza.Version, "1.0").
				Build(),
			expectedID: "stm-2",
		},
		"UnsupportedVersion": {
			trType: transport.Socket,
			header: stravaganza.NewBuilder("stream:stream").
				WithAttribute(stravaganza.Namespace, jabberClientNamespace).
				WithAttribute(stravaganza.StreamNamespace, streamNamespace).
				WithAttribute(stravaganza.Version, "2.0").
				Build(),
			expectErr:      true,
			expectedReason: streamerror.UnsupportedVersion,
		},
		"InvalidNamespace": {
			trType: transport.Socket,
			header: stravaganza.NewBuilder("stream:stream").
				WithAttribute(stravaganza.Namespace, "jabber:server").
				WithAttribute(stravaganza.StreamNamespace, streamNamespace).
				WithAttribute(stravaganza.Version, "1.0").
				Build(),
			expectErr:      true,
			expectedReason: streamerror.InvalidNamespace,
		},
		"UnexpectedElement": {
			trType:         transport.Socket,
			header:         stravaganza.NewBuilder("presence").Build(),
			expectErr:      true,
			expectedReason: streamerror.UnsupportedStanzaType,
		},
	}
	for tn, tc := range tcs {
		t.Run(tn, func(t *testing.T) {
			// given
			trMock := &transportMock{}
			trMock.TypeFunc = func() transport.Type { return tc.trType }

			prMock := &xmppParserMock{}
			prMock.ParseFunc = func() (stravaganza.Element, error) { return tc.header, nil }

			ss := Session{
				id:     "ss-1",
				cfg:    Config{Domain: "jackal.im", MaxStanzaSize: 4096},
				tr:     trMock,
				pr:     prMock,
				logger: kitlog.NewNopLogger(),
				opened: true,
			}

			// when
			elem, err := ss.Receive()

			// then
			if tc.expectErr {
				require.Nil(t, elem)

				se, ok := err.(*streamerror.Error)
				require.True(t, ok)
				require.Equal(t, tc.expectedReason, se.Reason)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tc.header.Name(), elem.Name())
			require.Equal(t, tc.expectedID, ss.StreamID())
		})
	}
}

func TestSession_ReceiveRemoteStreamError(t *testing.T) {
	// given
	prMock := &xmppParserMock{}
	prMock.ParseFunc = func() (stravaganza.Element, error) {
		return stravaganza.NewBuilder("stream:error").
			WithChild(
				stravaganza.NewBuilder("conflict").
					WithAttribute(stravaganza.Namespace, "urn:ietf:params:xml:ns:xmpp-streams").
					Build(),
			).
			WithChild(
				stravaganza.NewBuilder("text").
					WithAttribute(stravaganza.Namespace, "urn:ietf:params:xml:ns:xmpp-streams").
					WithText("replaced by new connection").
					Build(),
			).
			Build(), nil
	}
	ss := Session{
		id:      "ss-1",
		cfg:     Config{Domain: "jackal.im", MaxStanzaSize: 4096},
		tr:      &transportMock{},
		pr:      prMock,
		opened:  true,
		started: true,
	}

	// when
	elem, err := ss.Receive()

	// then
	require.Nil(t, elem)

	var rse *RemoteStreamError
	require.True(t, errors.As(err, &rse))
	require.Equal(t, "conflict", rse.Condition)
	require.Equal(t, "replaced by new connection", rse.Text)
}

func TestSession_ReceiveStanza(t *testing.T) {
	// given
	prMock := &xmppParserMock{}
	prMock.ParseFunc = func() (stravaganza.Element, error) {
		return stravaganza.NewBuilder("message").
			WithAttribute(stravaganza.Namespace, jabberClientNamespace).
			WithAttribute(stravaganza.ID, "m1").
			WithAttribute(stravaganza.Type, "chat").
			WithChild(
				stravaganza.NewBuilder("body").
					WithText("I'll give thee a wind.").
					Build(),
			).
			Build(), nil
	}
	ss := Session{
		id:      "ss-1",
		cfg:     Config{Domain: "jackal.im", MaxStanzaSize: 4096},
		tr:      &transportMock{},
		pr:      prMock,
		opened:  true,
		started: true,
	}
	userJID, _ := jid.NewWithString("ortuman@jackal.im/balcony", true)
	ss.SetJID(userJID)

	// when
	elem, err := ss.Receive()

	// then
	require.Nil(t, err)

	msg, ok := elem.(*stravaganza.Message)
	require.True(t, ok)
	require.Equal(t, "ortuman@jackal.im", msg.FromJID().String())
	require.Equal(t, "ortuman@jackal.im/balcony", msg.ToJID().String())
	require.Equal(t, "", msg.Attribute(stravaganza.Namespace))
}

func TestSession_ReceiveMalformedStanza(t *testing.T) {
	var tcs = map[string]stravaganza.Element{
		"MissingID": stravaganza.NewBuilder("iq").
			WithAttribute(stravaganza.Type, "get").
			Build(),
		"InvalidFrom": stravaganza.NewBuilder("message").
			WithAttribute(stravaganza.From, "ortuman@/balcony").
			Build(),
		"InvalidNamespace": stravaganza.NewBuilder("presence").
			WithAttribute(stravaganza.Namespace, "jabber:server").
			Build(),
	}
	for tn, stanza := range tcs {
		t.Run(tn, func(t *testing.T) {
			// given
			prMock := &xmppParserMock{}
			prMock.ParseFunc = func() (stravaganza.Element, error) { return stanza, nil }

			ss := New("ss-1", &transportMock{TypeFunc: func() transport.Type { return transport.Socket }}, Config{Domain: "jackal.im", MaxStanzaSize: 4096}, kitlog.NewNopLogger())
			ss.pr = prMock
			ss.started = true

			// when
			elem, err := ss.Receive()

			// then
			require.Nil(t, elem)

			var mErr *MalformedElementError
			require.True(t, errors.As(err, &mErr))
			require.Equal(t, stanza.Name(), mErr.Element.Name())
		})
	}
}

func TestSession_ReceiveParserError(t *testing.T) {
	// given
	prMock := &xmppParserMock{}
	ss := Session{
		id:      "ss-1",
		cfg:     Config{Domain: "jackal.im", MaxStanzaSize: 4096},
		tr:      &transportMock{},
		pr:      prMock,
		opened:  true,
		started: true,
	}

	// when
	errFoo := errors.New("foo error")
	prMock.ParseFunc = func() (stravaganza.Element, error) { return nil, errFoo }
	_, err0 := ss.Receive()

	prMock.ParseFunc = func() (stravaganza.Element, error) { return nil, ratelimiter.ErrReadLimitExceeded }
	_, err1 := ss.Receive()

	prMock.ParseFunc = func() (stravaganza.Element, error) { return nil, xmppparser.ErrTooLargeStanza }
	_, err2 := ss.Receive()

	prMock.ParseFunc = func() (stravaganza.Element, error) { return nil, &xml.SyntaxError{} }
	_, err3 := ss.Receive()

	// then
	require.Equal(t, errFoo, err0)

	se1, ok1 := err1.(*streamerror.Error)
	se2, ok2 := err2.(*streamerror.Error)
	se3, ok3 := err3.(*streamerror.Error)
	require.True(t, ok1)
	require.True(t, ok2)
	require.True(t, ok3)

	require.Equal(t, streamerror.PolicyViolation, se1.Reason)
	require.Equal(t, streamerror.PolicyViolation, se2.Reason)
	require.Equal(t, streamerror.InvalidXML, se3.Reason)
}

func TestSession_ReceiveOverTransport(t *testing.T) {
	// given
	input := strings.NewReader(
		`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" from="jackal.im" id="c2s-1" version="1.0">` +
			`<stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/></stream:features>` +
			`</stream:stream>`,
	)
	trMock := &transportMock{}
	trMock.TypeFunc = func() transport.Type { return transport.Socket }
	trMock.ReadFunc = input.Read

	ss := New("ss-1", trMock, Config{Domain: "jackal.im", MaxStanzaSize: 4096}, kitlog.NewNopLogger())

	// when
	hdr, err0 := ss.Receive()
	features, err1 := ss.Receive()
	_, err2 := ss.Receive()

	// then
	require.Nil(t, err0)
	require.Equal(t, "stream:stream", hdr.Name())
	require.Equal(t, "c2s-1", ss.StreamID())

	require.Nil(t, err1)
	require.Equal(t, "stream:features", features.Name())

	require.Equal(t, xmppparser.ErrStreamClosedByPeer, err2)

	// after a restart a new stream header is expected
	require.Nil(t, ss.Reset(trMock))
	require.Equal(t, "", ss.StreamID())
}
