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

type anonymous struct {
	state State
}

func newAnonymous() *anonymous {
	return &anonymous{}
}

func (a *anonymous) Mechanism() Mechanism { return Anonymous }

func (a *anonymous) State() State { return a.state }

// Start returns an empty message, trace information is never sent.
func (a *anonymous) Start() ([]byte, error) {
	if a.state != StateInit {
		a.state = StateFailed
		return nil, ErrUnexpectedState
	}
	a.state = StateFirstSent
	return nil, nil
}

func (a *anonymous) Challenge(_ []byte) ([]byte, error) {
	a.state = StateFailed
	return nil, &MalformedChallengeError{Field: "challenge"}
}

func (a *anonymous) Outcome(_ []byte) error {
	if a.state != StateFirstSent {
		a.state = StateFailed
		return ErrUnexpectedState
	}
	a.state = StateAuthenticated
	return nil
}

func (a *anonymous) Abort() {
	if a.state != StateAuthenticated {
		a.state = StateFailed
	}
}
