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
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoCommonMechanism is returned when client and server share no acceptable mechanism.
	ErrNoCommonMechanism = errors.New("sasl: no common mechanism")

	// ErrNonceMismatch is returned when the server nonce does not extend the client one.
	ErrNonceMismatch = errors.New("sasl: nonce mismatch")

	// ErrInvalidIterationCount is returned when the challenge iteration count is not a positive integer
	// or exceeds the accepted maximum.
	ErrInvalidIterationCount = errors.New("sasl: invalid iteration count")

	// ErrServerSignatureMismatch is returned when the server fails to prove knowledge of the credentials.
	ErrServerSignatureMismatch = errors.New("sasl: server signature mismatch")

	// ErrAuthenticationExhausted is returned once no further mechanism may be attempted.
	ErrAuthenticationExhausted = errors.New("sasl: authentication attempts exhausted")

	// ErrInvalidCredentials is returned when credentials cannot be used by the selected mechanism.
	ErrInvalidCredentials = errors.New("sasl: invalid credentials")

	// ErrUnexpectedState is returned when an authenticator is driven out of order.
	ErrUnexpectedState = errors.New("sasl: unexpected handshake state")
)

// Condition represents a SASL failure condition reported by the remote entity.
type Condition string

const (
	// Aborted represents 'aborted' failure condition.
	Aborted Condition = "aborted"

	// AccountDisabled represents 'account-disabled' failure condition.
	AccountDisabled Condition = "account-disabled"

	// CredentialsExpired represents 'credentials-expired' failure condition.
	CredentialsExpired Condition = "credentials-expired"

	// EncryptionRequired represents 'encryption-required' failure condition.
	EncryptionRequired Condition = "encryption-required"

	// IncorrectEncoding represents 'incorrect-encoding' failure condition.
	IncorrectEncoding Condition = "incorrect-encoding"

	// InvalidAuthzID represents 'invalid-authzid' failure condition.
	InvalidAuthzID Condition = "invalid-authzid"

	// InvalidMechanism represents 'invalid-mechanism' failure condition.
	InvalidMechanism Condition = "invalid-mechanism"

	// MalformedRequest represents 'malformed-request' failure condition.
	MalformedRequest Condition = "malformed-request"

	// MechanismTooWeak represents 'mechanism-too-weak' failure condition.
	MechanismTooWeak Condition = "mechanism-too-weak"

	// NotAuthorized represents 'not-authorized' failure condition.
	NotAuthorized Condition = "not-authorized"

	// TemporaryAuthFailure represents 'temporary-auth-failure' failure condition.
	TemporaryAuthFailure Condition = "temporary-auth-failure"
)

// MalformedChallengeError is returned when a server message cannot be interpreted.
type MalformedChallengeError struct {
	Field string
}

// Error satisfies error interface.
func (e *MalformedChallengeError) Error() string {
	return fmt.Sprintf("sasl: malformed challenge field '%s'", e.Field)
}

// RemoteFailureError represents an authentication failure reported by the server.
type RemoteFailureError struct {
	Condition Condition
	Text      string
}

// Error satisfies error interface.
func (e *RemoteFailureError) Error() string {
	if len(e.Text) > 0 {
		return fmt.Sprintf("sasl: remote failure: %s: %s", e.Condition, e.Text)
	}
	return fmt.Sprintf("sasl: remote failure: %s", e.Condition)
}

// IsFatal reports whether err must stop any further automatic authentication attempt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrServerSignatureMismatch)
}
