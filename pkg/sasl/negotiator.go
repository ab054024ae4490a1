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

// Policy defines client side mechanism selection rules.
type Policy struct {
	// Preference contains the accepted mechanisms, most preferred first.
	Preference []Mechanism

	// Confidential tells whether the underlying channel is already protected.
	// PLAIN is never selected over an unprotected channel.
	Confidential bool
}

// Without returns a copy of p in which m is no longer accepted.
func (p Policy) Without(m Mechanism) Policy {
	pref := make([]Mechanism, 0, len(p.Preference))
	for _, pm := range p.Preference {
		if pm != m {
			pref = append(pref, pm)
		}
	}
	return Policy{
		Preference:   pref,
		Confidential: p.Confidential,
	}
}

// Select picks the most preferred mechanism also present in advertised.
// ErrNoCommonMechanism is returned when no acceptable mechanism remains.
func Select(advertised []string, p Policy) (Mechanism, error) {
	offered := make(map[Mechanism]struct{}, len(advertised))
	for _, m := range ParseMechanisms(advertised) {
		offered[m] = struct{}{}
	}
	for _, m := range p.Preference {
		if m == Plain && !p.Confidential {
			continue
		}
		if _, ok := offered[m]; ok {
			return m, nil
		}
	}
	return 0, ErrNoCommonMechanism
}
