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
	"net"
	"time"
)

// deadlineConn invokes a handler whenever a single read blocks longer than rdTimeout.
type deadlineConn struct {
	net.Conn
	rdTimeout     time.Duration
	rdDeadlineHnd func()
}

func newDeadlineConn(conn net.Conn, readTimeout time.Duration) *deadlineConn {
	return &deadlineConn{
		Conn:      conn,
		rdTimeout: readTimeout,
	}
}

func (c *deadlineConn) Read(b []byte) (n int, err error) {
	if c.rdDeadlineHnd == nil {
		return c.Conn.Read(b)
	}
	tm := time.AfterFunc(c.rdTimeout, c.rdDeadlineHnd)
	n, err = c.Conn.Read(b)
	tm.Stop()
	return
}

func (c *deadlineConn) setReadDeadlineHandler(hnd func()) {
	c.rdDeadlineHnd = hnd
}

func (c *deadlineConn) underlyingConn() net.Conn {
	return c.Conn
}
