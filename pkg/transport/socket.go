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
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackal-xmpp/courier/pkg/util/ratelimiter"
)

const writeBuffSize = 4096

type readWriter struct {
	io.Reader
	io.Writer
}

type socketTransport struct {
	conn net.Conn
	lr   *ratelimiter.Reader
	bw   *bufio.Writer
	rw   io.ReadWriter
}

// NewSocketTransport creates a socket class stream transport.
// If keepAlive is greater than zero the connection gets closed once no data
// has been read during that interval.
func NewSocketTransport(conn net.Conn, keepAlive time.Duration) Transport {
	if keepAlive > 0 {
		dc := newDeadlineConn(conn, keepAlive)
		dc.setReadDeadlineHandler(func() { _ = conn.Close() })
		conn = dc
	}
	s := &socketTransport{conn: conn}
	s.setConn(conn, ratelimiter.NewReader(conn))
	return s
}

func (s *socketTransport) Read(p []byte) (n int, err error) {
	return s.rw.Read(p)
}

func (s *socketTransport) Write(p []byte) (n int, err error) {
	return s.rw.Write(p)
}

func (s *socketTransport) WriteString(str string) (int, error) {
	n, err := io.Copy(s.rw, strings.NewReader(str))
	return int(n), err
}

func (s *socketTransport) Close() error {
	return s.conn.Close()
}

func (s *socketTransport) Type() Type {
	return Socket
}

func (s *socketTransport) Flush() error {
	return s.bw.Flush()
}

func (s *socketTransport) SetWriteDeadline(d time.Time) error {
	return s.conn.SetWriteDeadline(d)
}

func (s *socketTransport) SetReadRateLimiter(rLim *rate.Limiter) error {
	s.lr.SetReadRateLimiter(rLim)
	return nil
}

func (s *socketTransport) StartTLS(ctx context.Context, cfg *tls.Config) error {
	if s.Secured() {
		return ErrAlreadySecured
	}
	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}
	lr := ratelimiter.NewReader(tlsConn)
	if rLim := s.lr.ReadRateLimiter(); rLim != nil {
		lr.SetReadRateLimiter(rLim)
	}
	s.setConn(tlsConn, lr)
	return nil
}

func (s *socketTransport) Secured() bool {
	_, ok := s.conn.(tlsStateQueryable)
	if ok {
		return true
	}
	if dc, ok := s.conn.(*deadlineConn); ok {
		_, ok = dc.underlyingConn().(tlsStateQueryable)
		return ok
	}
	return false
}

func (s *socketTransport) setConn(conn net.Conn, lr *ratelimiter.Reader) {
	s.conn = conn
	s.lr = lr
	s.bw = bufio.NewWriterSize(conn, writeBuffSize)
	s.rw = &readWriter{s.lr, s.bw}
}
