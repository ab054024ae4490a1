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

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jackal-xmpp/courier/pkg/util/ratelimiter"
)

// WebSocketSubprotocol is the XMPP websocket subprotocol name (RFC 7395).
const WebSocketSubprotocol = "xmpp"

// WebSocketConn represents a websocket connection interface.
type WebSocketConn interface {
	NextReader() (messageType int, r io.Reader, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	UnderlyingConn() net.Conn
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type webSocketTransport struct {
	conn      WebSocketConn
	keepAlive time.Duration
	secured   bool
	r         io.Reader
	lr        *ratelimiter.Reader
	wBuf      bytes.Buffer
}

// DialWebSocket opens a websocket connection against url and returns the associated transport.
func DialWebSocket(ctx context.Context, url string, tlsCfg *tls.Config, keepAlive time.Duration) (Transport, error) {
	d := websocket.Dialer{
		Subprotocols:    []string{WebSocketSubprotocol},
		TLSClientConfig: tlsCfg,
		Proxy:           websocket.DefaultDialer.Proxy,
	}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn.Subprotocol() != WebSocketSubprotocol {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: websocket subprotocol '%s' not supported by server", WebSocketSubprotocol)
	}
	return NewWebSocketTransport(conn, strings.HasPrefix(url, "wss://"), keepAlive), nil
}

// NewWebSocketTransport creates a websocket class stream transport.
func NewWebSocketTransport(conn WebSocketConn, secured bool, keepAlive time.Duration) Transport {
	wst := &webSocketTransport{
		conn:      conn,
		secured:   secured,
		keepAlive: keepAlive,
	}
	wst.lr = ratelimiter.NewReader(readerFunc(wst.readFrame))
	return wst
}

func (w *webSocketTransport) Read(p []byte) (n int, err error) {
	return w.lr.Read(p)
}

func (w *webSocketTransport) readFrame(p []byte) (int, error) {
	for {
		if w.r == nil {
			if w.keepAlive > 0 {
				_ = w.conn.SetReadDeadline(time.Now().Add(w.keepAlive))
			}
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.r = r
		}
		n, err := w.r.Read(p)
		if err == io.EOF {
			w.r = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (w *webSocketTransport) Write(p []byte) (n int, err error) {
	return w.wBuf.Write(p)
}

func (w *webSocketTransport) WriteString(str string) (int, error) {
	return w.wBuf.WriteString(str)
}

// Flush sends all buffered data as a single text frame.
func (w *webSocketTransport) Flush() error {
	if w.wBuf.Len() == 0 {
		return nil
	}
	defer w.wBuf.Reset()
	return w.conn.WriteMessage(websocket.TextMessage, w.wBuf.Bytes())
}

func (w *webSocketTransport) Close() error {
	return w.conn.Close()
}

func (w *webSocketTransport) Type() Type {
	return WebSocket
}

func (w *webSocketTransport) SetWriteDeadline(d time.Time) error {
	return w.conn.SetWriteDeadline(d)
}

func (w *webSocketTransport) SetReadRateLimiter(rLim *rate.Limiter) error {
	w.lr.SetReadRateLimiter(rLim)
	return nil
}

// StartTLS is not allowed over websocket, TLS is negotiated at connection time.
func (w *webSocketTransport) StartTLS(_ context.Context, _ *tls.Config) error {
	return ErrStartTLSNotSupported
}

func (w *webSocketTransport) Secured() bool {
	if w.secured {
		return true
	}
	_, ok := w.conn.UnderlyingConn().(tlsStateQueryable)
	return ok
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
