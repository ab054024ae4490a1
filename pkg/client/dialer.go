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
	"errors"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/idna"

	"github.com/jackal-xmpp/courier/pkg/transport"
	netutil "github.com/jackal-xmpp/courier/pkg/util/net"
)

const (
	c2sService    = "xmpp-client"
	c2sTLSService = "xmpps-client"

	defaultPort = 5222

	dialKeepAlive = time.Second * 15
)

var errSRVDialFailed = errors.New("client: failed to dial SRV")

type srvResolveFunc func(ctx context.Context, service, proto, domain string) ([]string, error)
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type socketDialer struct {
	domain    string
	host      string
	port      int
	directTLS bool
	keepAlive time.Duration

	srvResolve srvResolveFunc
	dialCtx    dialFunc
	dialTLSCtx dialFunc
}

func newSocketDialer(cfg *Config, domain string, tlsCfg *tls.Config) *socketDialer {
	d := net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: dialKeepAlive,
	}
	dTLS := tls.Dialer{
		NetDialer: &d,
		Config:    tlsCfg,
	}
	return &socketDialer{
		domain:     domain,
		host:       cfg.Host,
		port:       cfg.Port,
		directTLS:  cfg.DirectTLS,
		keepAlive:  cfg.KeepAliveTimeout,
		srvResolve: netutil.NewSRVResolver().Resolve,
		dialCtx:    d.DialContext,
		dialTLSCtx: dTLS.DialContext,
	}
}

// Dial satisfies Dialer interface.
func (d *socketDialer) Dial(ctx context.Context) (transport.Transport, error) {
	conn, err := d.dialConn(ctx)
	if err != nil {
		return nil, err
	}
	return transport.NewSocketTransport(conn, d.keepAlive), nil
}

func (d *socketDialer) dialConn(ctx context.Context) (net.Conn, error) {
	if len(d.host) > 0 {
		port := d.port
		if port == 0 {
			port = defaultPort
		}
		addr := net.JoinHostPort(d.host, strconv.Itoa(port))
		if d.directTLS {
			return d.dialTLSCtx(ctx, "tcp", addr)
		}
		return d.dialCtx(ctx, "tcp", addr)
	}
	domain, err := idna.Lookup.ToASCII(d.domain)
	if err != nil {
		return nil, err
	}
	conn, err := d.dialSRV(ctx, domain, c2sTLSService, true)
	if err == nil {
		return conn, nil
	}
	conn, err = d.dialSRV(ctx, domain, c2sService, false)
	if err == nil {
		return conn, nil
	}
	return d.dialCtx(ctx, "tcp", net.JoinHostPort(domain, strconv.Itoa(defaultPort)))
}

func (d *socketDialer) dialSRV(ctx context.Context, domain, service string, dialTLS bool) (net.Conn, error) {
	targets, err := d.srvResolve(ctx, service, "tcp", domain)
	if err != nil {
		return nil, err
	}
	dialFn := d.dialCtx
	if dialTLS {
		dialFn = d.dialTLSCtx
	}
	for _, target := range targets {
		conn, err := dialFn(ctx, "tcp", target)
		if err == nil {
			return conn, nil
		}
	}
	return nil, errSRVDialFailed
}

type webSocketDialer struct {
	url       string
	tlsCfg    *tls.Config
	keepAlive time.Duration
}

// Dial satisfies Dialer interface.
func (d *webSocketDialer) Dial(ctx context.Context) (transport.Transport, error) {
	return transport.DialWebSocket(ctx, d.url, d.tlsCfg, d.keepAlive)
}

func newDialer(cfg *Config, domain string, tlsCfg *tls.Config) Dialer {
	if cfg.Transport == webSocketTransport {
		return &webSocketDialer{
			url:       cfg.WebSocketURL,
			tlsCfg:    tlsCfg,
			keepAlive: cfg.KeepAliveTimeout,
		}
	}
	return newSocketDialer(cfg, domain, tlsCfg)
}
