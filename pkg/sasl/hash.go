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
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// HashFamily exposes the primitives a salted challenge mechanism is built upon.
type HashFamily interface {
	// Name returns the hash family name.
	Name() string

	// Size returns the digest size in bytes.
	Size() int

	// HMAC returns the keyed hash of data.
	HMAC(key, data []byte) []byte

	// Digest returns the plain hash of data.
	Digest(data []byte) []byte

	// Derive runs PBKDF2 using HMAC as its pseudo random function.
	Derive(secret, salt []byte, iterations int) []byte
}

var (
	// SHA1 is the SHA-1 hash family.
	SHA1 = NewHashFamily("SHA-1", sha1.New)

	// SHA256 is the SHA-256 hash family.
	SHA256 = NewHashFamily("SHA-256", sha256.New)

	// SHA512 is the SHA-512 hash family.
	SHA512 = NewHashFamily("SHA-512", sha512.New)

	// SHA3512 is the SHA3-512 hash family.
	SHA3512 = NewHashFamily("SHA3-512", sha3.New512)
)

type hashFamily struct {
	name string
	h    func() hash.Hash
}

// NewHashFamily returns a HashFamily backed by h.
func NewHashFamily(name string, h func() hash.Hash) HashFamily {
	return &hashFamily{name: name, h: h}
}

func (hf *hashFamily) Name() string { return hf.name }

func (hf *hashFamily) Size() int { return hf.h().Size() }

func (hf *hashFamily) HMAC(key, data []byte) []byte {
	m := hmac.New(hf.h, key)
	m.Write(data)
	return m.Sum(nil)
}

func (hf *hashFamily) Digest(data []byte) []byte {
	h := hf.h()
	h.Write(data)
	return h.Sum(nil)
}

func (hf *hashFamily) Derive(secret, salt []byte, iterations int) []byte {
	return pbkdf2.Key(secret, salt, iterations, hf.Size(), hf.h)
}
