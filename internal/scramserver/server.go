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

// Package scramserver implements the server side of a SCRAM exchange.
// It's used to exercise client authenticators against a well known peer.
package scramserver

import (
	"crypto/hmac"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"

	cryptoutil "github.com/jackal-xmpp/courier/pkg/util/crypto"
)

var (
	// ErrMalformedRequest is returned when a client message cannot be parsed.
	ErrMalformedRequest = errors.New("scramserver: malformed request")

	// ErrNotAuthorized is returned when the client proof can not be verified.
	ErrNotAuthorized = errors.New("scramserver: not authorized")
)

type state int

const (
	startState state = iota
	challengedState
	doneState
)

// Server represents a single server side SCRAM exchange.
type Server struct {
	h              func() hash.Hash
	username       string
	saltedPassword []byte
	salt           []byte
	iterations     int
	nonceSuffix    string

	state         state
	gs2Header     string
	clientFirst   string
	serverFirst   string
	srvNonce      string
	authenticated bool
}

// New returns a new Server instance for the given user credentials.
func New(h func() hash.Hash, username, password string, salt []byte, iterations int) *Server {
	return &Server{
		h:              h,
		username:       username,
		saltedPassword: SaltedPassword([]byte(password), salt, iterations, h),
		salt:           salt,
		iterations:     iterations,
		nonceSuffix:    uuid.New().String(),
	}
}

// WithNonceSuffix overrides the server part of the combined nonce.
func (s *Server) WithNonceSuffix(suffix string) *Server {
	s.nonceSuffix = suffix
	return s
}

// Authenticated tells whether the client proof has been accepted.
func (s *Server) Authenticated() bool {
	return s.authenticated
}

// First processes client-first-message and returns server-first-message.
func (s *Server) First(clientFirst []byte) ([]byte, error) {
	if s.state != startState {
		return nil, ErrMalformedRequest
	}
	sp := strings.SplitN(string(clientFirst), ",", 3)
	if len(sp) != 3 {
		return nil, ErrMalformedRequest
	}
	switch sp[0] {
	case "n", "y":
		break
	default:
		// channel binding is not supported
		return nil, ErrMalformedRequest
	}
	s.gs2Header = sp[0] + "," + sp[1] + ","
	s.clientFirst = sp[2]

	params := parseParameters(s.clientFirst)
	username := unescapeName(params["n"])
	cNonce := params["r"]
	if len(username) == 0 || len(cNonce) == 0 {
		return nil, ErrMalformedRequest
	}
	if username != s.username {
		return nil, ErrNotAuthorized
	}
	s.srvNonce = cNonce + s.nonceSuffix
	s.serverFirst = fmt.Sprintf("r=%s,s=%s,i=%d", s.srvNonce, base64.StdEncoding.EncodeToString(s.salt), s.iterations)
	s.state = challengedState

	return []byte(s.serverFirst), nil
}

// Final processes client-final-message and returns server-final-message.
func (s *Server) Final(clientFinal []byte) ([]byte, error) {
	if s.state != challengedState {
		return nil, ErrMalformedRequest
	}
	s.state = doneState

	msg := string(clientFinal)
	idx := strings.LastIndex(msg, ",p=")
	if idx == -1 {
		return nil, ErrMalformedRequest
	}
	finalBare := msg[:idx]
	proof, err := base64.StdEncoding.DecodeString(msg[idx+3:])
	if err != nil {
		return nil, ErrMalformedRequest
	}
	params := parseParameters(finalBare)
	if params["c"] != base64.StdEncoding.EncodeToString([]byte(s.gs2Header)) {
		return nil, ErrNotAuthorized
	}
	if params["r"] != s.srvNonce {
		return nil, ErrNotAuthorized
	}
	clientKey := s.hmac([]byte("Client Key"), s.saltedPassword)
	storedKey := s.hash(clientKey)
	authMessage := s.clientFirst + "," + s.serverFirst + "," + finalBare
	clientSignature := s.hmac([]byte(authMessage), storedKey)

	expectedProof := cryptoutil.XOR(clientKey, clientSignature)
	if !cryptoutil.Equal(expectedProof, proof) {
		return []byte("e=invalid-proof"), ErrNotAuthorized
	}
	serverKey := s.hmac([]byte("Server Key"), s.saltedPassword)
	serverSignature := s.hmac([]byte(authMessage), serverKey)

	s.authenticated = true
	return []byte("v=" + base64.StdEncoding.EncodeToString(serverSignature)), nil
}

func (s *Server) hmac(b []byte, key []byte) []byte {
	m := hmac.New(s.h, key)
	m.Write(b)
	return m.Sum(nil)
}

func (s *Server) hash(b []byte) []byte {
	h := s.h()
	h.Write(b)
	return h.Sum(nil)
}

// SaltedPassword computes the SCRAM salted password of a given user.
func SaltedPassword(password, salt []byte, iterations int, h func() hash.Hash) []byte {
	return pbkdf2.Key(password, salt, iterations, h().Size(), h)
}

func parseParameters(str string) map[string]string {
	params := make(map[string]string)
	for _, attr := range strings.Split(str, ",") {
		key, val, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		if _, exists := params[key]; !exists {
			params[key] = val
		}
	}
	return params
}

var nameUnescaper = strings.NewReplacer("=2C", ",", "=3D", "=")

func unescapeName(s string) string {
	return nameUnescaper.Replace(s)
}
