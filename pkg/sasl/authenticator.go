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

package sasl

import "github.com/pkg/errors"

// State represents the handshake state of a single authentication attempt.
type State uint8

const (
	// StateInit is the state of a fresh authenticator.
	StateInit State = iota

	// StateFirstSent is reached once the initial client message has been produced.
	StateFirstSent

	// StateChallengeReceived is reached while processing the server challenge.
	StateChallengeReceived

	// StateFinalSent is reached once the client proof has been produced.
	StateFinalSent

	// StateAuthenticated is the successful terminal state.
	StateAuthenticated

	// StateFailed is the unsuccessful terminal state.
	StateFailed
)

// String returns State string representation.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFirstSent:
		return "first_sent"
	case StateChallengeReceived:
		return "challenge_received"
	case StateFinalSent:
		return "final_sent"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return ""
}

// Authenticator defines a client side authentication handshake.
// Each instance serves exactly one attempt and is never reused.
type Authenticator interface {
	// Mechanism returns authenticator mechanism.
	Mechanism() Mechanism

	// State returns current handshake state.
	State() State

	// Start returns the initial client message.
	Start() ([]byte, error)

	// Challenge processes a server challenge and returns the client response.
	Challenge(data []byte) ([]byte, error)

	// Outcome processes the additional data carried by a success result.
	Outcome(data []byte) error

	// Abort discards the attempt and any key material it holds.
	Abort()
}

// NewAuthenticator returns a new authenticator of mechanism m.
// Credentials are copied, so later changes made by the caller do not affect the attempt.
func NewAuthenticator(m Mechanism, creds Credentials) (Authenticator, error) {
	creds = creds.clone()
	switch m {
	case Anonymous:
		return newAnonymous(), nil
	case Plain:
		return newPlain(creds), nil
	}
	if hf := m.hashFamily(); hf != nil {
		return newScram(m, hf, creds), nil
	}
	return nil, errors.Errorf("sasl: unsupported mechanism %d", m)
}
