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

// State represents a client session lifecycle state.
type State uint32

const (
	// Disconnected is the initial state and the terminal one after a shutdown.
	Disconnected State = iota

	// Connecting is the state in which the transport is being opened and the first feature set awaited.
	Connecting

	// StreamNegotiating is the state in which stream features (STARTTLS included) are being negotiated.
	StreamNegotiating

	// Authenticating is the state in which a SASL mechanism is being driven.
	Authenticating

	// Binding is the state in which the session resource is being bound.
	Binding

	// Established is the steady state in which stanzas are exchanged.
	Established

	// Reconnecting is the state in which a reconnection delay is pending.
	Reconnecting
)

// String returns State string representation.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case StreamNegotiating:
		return "stream_negotiating"
	case Authenticating:
		return "authenticating"
	case Binding:
		return "binding"
	case Established:
		return "established"
	case Reconnecting:
		return "reconnecting"
	}
	return ""
}

// step refines a lifecycle state with the element the state machine is waiting for.
type step uint8

const (
	awaitingHeader step = iota
	awaitingFeatures
	awaitingProceed
	awaitingSASL
	awaitingBind
	awaitingSession
	streaming
)
