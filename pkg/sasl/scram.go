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
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	cryptoutil "github.com/jackal-xmpp/courier/pkg/util/crypto"
)

const nonceSize = 24

var (
	clientKeyLabel = []byte("Client Key")
	serverKeyLabel = []byte("Server Key")
)

type scram struct {
	mech  Mechanism
	h     HashFamily
	creds Credentials
	nonce func() (string, error)

	state       State
	gs2Header   string
	clientNonce string
	firstBare   []byte
	authMessage []byte
	serverKey   []byte
}

func newScram(m Mechanism, h HashFamily, creds Credentials) *scram {
	return &scram{
		mech:  m,
		h:     h,
		creds: creds,
		nonce: randomNonce,
		state: StateInit,
	}
}

func (s *scram) Mechanism() Mechanism { return s.mech }

func (s *scram) State() State { return s.state }

func (s *scram) Start() ([]byte, error) {
	if s.state != StateInit {
		return nil, s.fail(ErrUnexpectedState)
	}
	identity, err := s.creds.normalizedIdentity()
	if err != nil {
		return nil, s.fail(err)
	}
	nonce, err := s.nonce()
	if err != nil {
		return nil, s.fail(errors.Wrap(err, "sasl: failed to generate nonce"))
	}
	s.clientNonce = nonce

	s.gs2Header = "n,,"
	if len(s.creds.AuthzID) > 0 {
		s.gs2Header = "n,a=" + escapeName(s.creds.AuthzID) + ","
	}
	s.firstBare = []byte("n=" + escapeName(identity) + ",r=" + nonce)

	s.state = StateFirstSent

	msg := make([]byte, 0, len(s.gs2Header)+len(s.firstBare))
	msg = append(msg, s.gs2Header...)
	return append(msg, s.firstBare...), nil
}

func (s *scram) Challenge(data []byte) ([]byte, error) {
	switch s.state {
	case StateFirstSent:
		return s.handleChallenge(data)
	case StateFinalSent:
		// server signature sent as a challenge instead of as success data
		if err := s.verify(data); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, s.fail(ErrUnexpectedState)
}

func (s *scram) Outcome(data []byte) error {
	switch s.state {
	case StateAuthenticated:
		return nil
	case StateFinalSent:
		return s.verify(data)
	}
	return s.fail(ErrUnexpectedState)
}

func (s *scram) Abort() {
	if s.state == StateAuthenticated {
		return
	}
	s.state = StateFailed
	s.discard()
}

func (s *scram) handleChallenge(challenge []byte) ([]byte, error) {
	s.state = StateChallengeReceived

	params, err := parseParameters(challenge)
	if err != nil {
		return nil, s.fail(err)
	}
	if _, ok := params.get("m"); ok {
		return nil, s.fail(&MalformedChallengeError{Field: "m"})
	}
	combinedNonce, ok := params.get("r")
	if !ok || len(combinedNonce) == 0 {
		return nil, s.fail(&MalformedChallengeError{Field: "r"})
	}
	if len(combinedNonce) <= len(s.clientNonce) || !strings.HasPrefix(combinedNonce, s.clientNonce) {
		return nil, s.fail(ErrNonceMismatch)
	}
	saltB64, ok := params.get("s")
	if !ok {
		return nil, s.fail(&MalformedChallengeError{Field: "s"})
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) == 0 {
		return nil, s.fail(&MalformedChallengeError{Field: "s"})
	}
	iterStr, ok := params.get("i")
	if !ok {
		return nil, s.fail(&MalformedChallengeError{Field: "i"})
	}
	iterations, err := parseIterationCount(iterStr, s.creds.maxIterations())
	if err != nil {
		return nil, s.fail(err)
	}
	saltedPassword, err := s.saltedPassword(salt, iterations)
	if err != nil {
		return nil, s.fail(err)
	}
	clientKey := s.h.HMAC(saltedPassword, clientKeyLabel)
	storedKey := s.h.Digest(clientKey)
	serverKey := s.h.HMAC(saltedPassword, serverKeyLabel)

	finalBare := "c=" + base64.StdEncoding.EncodeToString([]byte(s.gs2Header)) + ",r=" + combinedNonce

	authMessage := bytes.NewBuffer(make([]byte, 0, len(s.firstBare)+len(challenge)+len(finalBare)+2))
	authMessage.Write(s.firstBare)
	authMessage.WriteByte(',')
	authMessage.Write(challenge)
	authMessage.WriteByte(',')
	authMessage.WriteString(finalBare)

	clientSignature := s.h.HMAC(storedKey, authMessage.Bytes())
	clientProof := cryptoutil.XOR(clientKey, clientSignature)

	final := finalBare + ",p=" + base64.StdEncoding.EncodeToString(clientProof)

	cryptoutil.Wipe(saltedPassword, clientKey, storedKey, clientSignature, clientProof)

	s.serverKey = serverKey
	s.authMessage = authMessage.Bytes()
	s.state = StateFinalSent

	return []byte(final), nil
}

func (s *scram) verify(outcome []byte) error {
	defer s.discard()

	if len(outcome) == 0 {
		return s.fail(ErrServerSignatureMismatch)
	}
	params, err := parseParameters(outcome)
	if err != nil {
		return s.fail(err)
	}
	if e, ok := params.get("e"); ok {
		return s.fail(&RemoteFailureError{Condition: Condition(e)})
	}
	v, ok := params.get("v")
	if !ok {
		return s.fail(&MalformedChallengeError{Field: "v"})
	}
	signature, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return s.fail(&MalformedChallengeError{Field: "v"})
	}
	expected := s.h.HMAC(s.serverKey, s.authMessage)
	defer cryptoutil.Wipe(expected)

	if !cryptoutil.Equal(expected, signature) {
		return s.fail(ErrServerSignatureMismatch)
	}
	s.state = StateAuthenticated
	return nil
}

func (s *scram) saltedPassword(salt []byte, iterations int) ([]byte, error) {
	if dk := s.creds.Secret.Derived; dk != nil && dk.matches(s.mech, salt, iterations) {
		return append([]byte(nil), dk.Key...), nil
	}
	password, err := s.creds.normalizedPassword()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Wipe(password)

	return s.h.Derive(password, salt, iterations), nil
}

func (s *scram) fail(err error) error {
	s.state = StateFailed
	s.discard()
	return err
}

func (s *scram) discard() {
	cryptoutil.Wipe(s.serverKey, s.authMessage)
	s.serverKey = nil
	s.authMessage = nil
	if dk := s.creds.Secret.Derived; dk != nil {
		cryptoutil.Wipe(dk.Key)
	}
	s.creds.Secret = Secret{}
}

// parseIterationCount accepts a positive decimal number without sign or leading zeros, not above limit.
func parseIterationCount(s string, limit int) (int, error) {
	if len(s) == 0 || s[0] < '1' || s[0] > '9' {
		return 0, ErrInvalidIterationCount
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidIterationCount
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > limit {
		return 0, ErrInvalidIterationCount
	}
	return n, nil
}

func randomNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

type scramParameter struct {
	key string
	val string
}

type scramParameters []scramParameter

func (ps scramParameters) get(key string) (string, bool) {
	for _, p := range ps {
		if p.key == key {
			return p.val, true
		}
	}
	return "", false
}

func parseParameters(b []byte) (scramParameters, error) {
	var ps scramParameters
	for _, attr := range strings.Split(string(b), ",") {
		key, val, ok := strings.Cut(attr, "=")
		if !ok || len(key) != 1 {
			return nil, &MalformedChallengeError{Field: "syntax"}
		}
		ps = append(ps, scramParameter{key: key, val: val})
	}
	return ps, nil
}

var nameEscaper = strings.NewReplacer("=", "=3D", ",", "=2C")

func escapeName(s string) string {
	return nameEscaper.Replace(s)
}
