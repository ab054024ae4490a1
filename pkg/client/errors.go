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
	"fmt"

	"github.com/pkg/errors"

	"github.com/jackal-xmpp/courier/pkg/sasl"
)

var (
	// ErrClientShutdown is returned by operations issued after or interrupted by a shutdown.
	ErrClientShutdown = errors.New("client: shut down")

	// ErrNotEstablished is returned by SendIQ when the session is not established.
	ErrNotEstablished = errors.New("client: session not established")

	// ErrInvalidIQ is returned by SendIQ when the request is not a get or set IQ with an identifier.
	ErrInvalidIQ = errors.New("client: invalid iq request")

	// ErrDuplicateIQ is returned by SendIQ when a request with the same identifier is still awaiting its response.
	ErrDuplicateIQ = errors.New("client: duplicate iq identifier")

	// ErrTLSRequired is returned when a confidential channel cannot be established and policy requires one.
	ErrTLSRequired = errors.New("client: tls required")

	// ErrTLSFailure is returned when the server refuses to proceed with STARTTLS.
	ErrTLSFailure = errors.New("client: starttls failure")

	// ErrBindConflict is returned when no resource could be bound because of a conflict.
	ErrBindConflict = errors.New("client: resource binding conflict")

	// ErrBindNotSupported is returned when the server does not offer resource binding.
	ErrBindNotSupported = errors.New("client: resource binding not supported")

	// ErrSessionFailure is returned when the server rejects legacy session establishment.
	ErrSessionFailure = errors.New("client: session establishment failure")
)

// AuthError represents an authentication failure of a connection cycle.
type AuthError struct {
	// Mechanism is the last mechanism attempted, zero if none could be selected.
	Mechanism sasl.Mechanism

	// Err is the failure cause.
	Err error
}

// Error satisfies error interface.
func (e *AuthError) Error() string {
	if e.Mechanism == 0 {
		return fmt.Sprintf("client: authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("client: %s authentication failed: %v", e.Mechanism, e.Err)
}

// Unwrap returns the failure cause.
func (e *AuthError) Unwrap() error { return e.Err }

// TransportError represents a failure reported by the underlying transport.
type TransportError struct {
	Err error
}

// Error satisfies error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("client: transport error: %v", e.Err)
}

// Unwrap returns the transport error.
func (e *TransportError) Unwrap() error { return e.Err }
