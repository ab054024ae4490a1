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

package event

import (
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"

	"github.com/jackal-xmpp/courier/pkg/sasl"
)

// Event represents a client session event delivered to subscribers.
// The set of variants is closed: Connected, Disconnected, AuthenticationFailed,
// IncomingMessage, PresenceChange, RosterChange and Other.
type Event interface {
	isEvent()
}

// Connected is delivered once the session reaches the established state.
type Connected struct {
	// JID is the full JID bound to the session.
	JID *jid.JID
}

// Disconnected is delivered whenever the session loses its stream.
type Disconnected struct {
	// Reason is the cause of the disconnection. A nil value denotes a requested shutdown.
	Reason error

	// Reconnecting tells whether a reconnection has been scheduled.
	Reconnecting bool
}

// AuthenticationFailed is delivered when a connection cycle could not authenticate.
type AuthenticationFailed struct {
	// Mechanism is the last mechanism attempted, zero if none could be selected.
	Mechanism sasl.Mechanism

	// Cause is the authentication failure cause.
	Cause error
}

// IncomingMessage is delivered for every message stanza.
type IncomingMessage struct {
	Message *stravaganza.Message
}

// PresenceChange is delivered for every presence stanza.
type PresenceChange struct {
	// From is the presence sender JID.
	From *jid.JID

	// Type is the presence type attribute value. Empty for available presences.
	Type string

	// Show is the availability sub-state (away, chat, dnd or xa). Empty when not present.
	Show string

	// Status is the presence status text in the stanza default language,
	// or the first one provided when none is in that language.
	Status string

	// Statuses contains every status text keyed by its xml:lang value.
	Statuses map[string]string

	// Priority is the presence priority value.
	Priority int8

	// AvatarHash is the advertised vCard avatar hash, if any.
	AvatarHash string

	// Presence is the original presence stanza.
	Presence *stravaganza.Presence
}

// RosterChange is delivered for the initial roster snapshot and every subsequent roster push.
type RosterChange struct {
	// Snapshot tells whether items represent the whole roster.
	Snapshot bool

	// Version is the roster version, if any.
	Version string

	// Items contains the changed roster items.
	Items []RosterItem
}

// Other wraps any incoming element not covered by other variants,
// including malformed stanzas, in which case Err is set.
type Other struct {
	Element stravaganza.Element
	Err     error
}

func (Connected) isEvent()            {}
func (Disconnected) isEvent()         {}
func (AuthenticationFailed) isEvent() {}
func (IncomingMessage) isEvent()      {}
func (PresenceChange) isEvent()       {}
func (RosterChange) isEvent()         {}
func (Other) isEvent()                {}
