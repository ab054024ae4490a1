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
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/secure/precis"
)

// DefaultMaxIterations is the highest salted-challenge iteration count accepted when
// Credentials.MaxIterations is not set.
const DefaultMaxIterations = 1000000

// Credentials contains the information required to run an authentication attempt.
type Credentials struct {
	// Identity is the authentication identity (usually the JID localpart).
	Identity string

	// AuthzID is the optional authorization identity.
	AuthzID string

	// Secret holds the password or its derived key material.
	Secret Secret

	// Domain is the target domain.
	Domain string

	// MaxIterations bounds the iteration count a server may request.
	// DefaultMaxIterations applies when zero.
	MaxIterations int
}

// Secret holds either a raw password or salted key material derived from it.
type Secret struct {
	Password string
	Derived  *DerivedKey
}

// DerivedKey is a salted password computed for a given hash, salt and iteration count.
type DerivedKey struct {
	Mechanism  Mechanism
	Salt       []byte
	Iterations int
	Key        []byte
}

func (dk *DerivedKey) matches(m Mechanism, salt []byte, iterations int) bool {
	return dk.Mechanism == m && dk.Iterations == iterations && bytes.Equal(dk.Salt, salt)
}

// clone returns a deep copy so that the attempt owns its own key material.
func (c Credentials) clone() Credentials {
	cp := c
	if dk := c.Secret.Derived; dk != nil {
		cp.Secret.Derived = &DerivedKey{
			Mechanism:  dk.Mechanism,
			Salt:       append([]byte(nil), dk.Salt...),
			Iterations: dk.Iterations,
			Key:        append([]byte(nil), dk.Key...),
		}
	}
	return cp
}

func (c Credentials) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return DefaultMaxIterations
}

func (c Credentials) normalizedIdentity() (string, error) {
	id, err := precis.UsernameCasePreserved.String(c.Identity)
	if err != nil {
		return "", errors.Wrap(ErrInvalidCredentials, err.Error())
	}
	return id, nil
}

func (c Credentials) normalizedPassword() ([]byte, error) {
	if len(c.Secret.Password) == 0 {
		return nil, errors.Wrap(ErrInvalidCredentials, "empty password")
	}
	p, err := precis.OpaqueString.Bytes([]byte(c.Secret.Password))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCredentials, err.Error())
	}
	return p, nil
}
