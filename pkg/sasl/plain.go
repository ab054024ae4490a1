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

import (
	cryptoutil "github.com/jackal-xmpp/courier/pkg/util/crypto"
)

type plain struct {
	creds Credentials
	state State
}

func newPlain(creds Credentials) *plain {
	return &plain{creds: creds}
}

func (p *plain) Mechanism() Mechanism { return Plain }

func (p *plain) State() State { return p.state }

func (p *plain) Start() ([]byte, error) {
	if p.state != StateInit {
		return nil, p.fail(ErrUnexpectedState)
	}
	identity, err := p.creds.normalizedIdentity()
	if err != nil {
		return nil, p.fail(err)
	}
	password, err := p.creds.normalizedPassword()
	if err != nil {
		return nil, p.fail(err)
	}
	defer cryptoutil.Wipe(password)

	// authzid NUL authcid NUL passwd
	msg := make([]byte, 0, len(p.creds.AuthzID)+len(identity)+len(password)+2)
	msg = append(msg, p.creds.AuthzID...)
	msg = append(msg, 0)
	msg = append(msg, identity...)
	msg = append(msg, 0)
	msg = append(msg, password...)

	p.creds.Secret = Secret{}
	p.state = StateFirstSent
	return msg, nil
}

func (p *plain) Challenge(_ []byte) ([]byte, error) {
	return nil, p.fail(&MalformedChallengeError{Field: "challenge"})
}

func (p *plain) Outcome(_ []byte) error {
	if p.state != StateFirstSent {
		return p.fail(ErrUnexpectedState)
	}
	p.state = StateAuthenticated
	return nil
}

func (p *plain) Abort() {
	if p.state == StateAuthenticated {
		return
	}
	_ = p.fail(nil)
}

func (p *plain) fail(err error) error {
	p.state = StateFailed
	p.creds.Secret = Secret{}
	return err
}
