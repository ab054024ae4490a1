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

import "strings"

// Namespace is the XMPP SASL negotiation namespace.
const Namespace = "urn:ietf:params:xml:ns:xmpp-sasl"

// Mechanism represents a supported SASL mechanism.
type Mechanism uint8

const (
	// Anonymous represents ANONYMOUS authentication mechanism.
	Anonymous Mechanism = iota + 1

	// Plain represents PLAIN authentication mechanism.
	Plain

	// ScramSHA1 represents SCRAM-SHA-1 authentication mechanism.
	ScramSHA1

	// ScramSHA256 represents SCRAM-SHA-256 authentication mechanism.
	ScramSHA256

	// ScramSHA512 represents SCRAM-SHA-512 authentication mechanism.
	ScramSHA512

	// ScramSHA3512 represents SCRAM-SHA3-512 authentication mechanism.
	ScramSHA3512
)

// strengthOrder lists every supported mechanism, strongest first.
var strengthOrder = []Mechanism{
	ScramSHA3512,
	ScramSHA512,
	ScramSHA256,
	ScramSHA1,
	Plain,
	Anonymous,
}

// String returns Mechanism string representation.
func (m Mechanism) String() string {
	switch m {
	case Anonymous:
		return "ANONYMOUS"
	case Plain:
		return "PLAIN"
	case ScramSHA1:
		return "SCRAM-SHA-1"
	case ScramSHA256:
		return "SCRAM-SHA-256"
	case ScramSHA512:
		return "SCRAM-SHA-512"
	case ScramSHA3512:
		return "SCRAM-SHA3-512"
	}
	return ""
}

// IsScram tells whether m belongs to the salted challenge family.
func (m Mechanism) IsScram() bool {
	return m.hashFamily() != nil
}

// Stronger reports whether m is stronger than other.
func (m Mechanism) Stronger(other Mechanism) bool {
	return m.rank() < other.rank()
}

func (m Mechanism) rank() int {
	for i, sm := range strengthOrder {
		if sm == m {
			return i
		}
	}
	return len(strengthOrder)
}

func (m Mechanism) hashFamily() HashFamily {
	switch m {
	case ScramSHA1:
		return SHA1
	case ScramSHA256:
		return SHA256
	case ScramSHA512:
		return SHA512
	case ScramSHA3512:
		return SHA3512
	}
	return nil
}

// ParseMechanism returns the mechanism identified by name.
// Unknown or unsupported names (channel binding variants included) are reported as not found.
func ParseMechanism(name string) (Mechanism, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, m := range strengthOrder {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// ParseMechanisms converts a list of mechanism names, discarding unknown ones.
func ParseMechanisms(names []string) []Mechanism {
	var ms []Mechanism
	for _, name := range names {
		if m, ok := ParseMechanism(name); ok {
			ms = append(ms, m)
		}
	}
	return ms
}

// DefaultPreference returns every password based mechanism sorted by strength.
func DefaultPreference() []Mechanism {
	var ms []Mechanism
	for _, m := range strengthOrder {
		if m == Anonymous {
			continue
		}
		ms = append(ms, m)
	}
	return ms
}
