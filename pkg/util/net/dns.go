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

package net

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

const resolveTimeout = time.Second * 5

type lookupSRVFunc func(ctx context.Context, service, proto, name string) (cname string, addrs []*net.SRV, err error)

// SRVResolver defines a SRV dns resolver.
type SRVResolver struct {
	lookupFn lookupSRVFunc
}

// NewSRVResolver creates and returns an initialized SRVResolver instance.
func NewSRVResolver() *SRVResolver {
	r := &net.Resolver{
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: resolveTimeout}
			return d.DialContext(ctx, "tcp", address)
		},
	}
	return &SRVResolver{lookupFn: r.LookupSRV}
}

// Resolve performs SRV resolution over dns and returns the dialable host:port targets
// in priority and weight order. Records denoting an unavailable service are skipped.
func (r *SRVResolver) Resolve(ctx context.Context, service, proto, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	_, addrs, err := r.lookupFn(ctx, service, proto, domain)
	if err != nil {
		return nil, err
	}
	var retVal []string
	for _, addr := range addrs {
		if addr.Target == "." {
			continue
		}
		host := strings.TrimSuffix(addr.Target, ".")
		port := strconv.Itoa(int(addr.Port))

		retVal = append(retVal, net.JoinHostPort(host, port))
	}
	return retVal, nil
}
