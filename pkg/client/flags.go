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

package client

import "sync"

const (
	fSecured       uint8 = 1 << 0
	fAuthenticated       = 1 << 1
	fBound               = 1 << 2
)

type flags struct {
	mtx sync.RWMutex
	fs  uint8
}

func (f *flags) isSecured() bool {
	return f.is(fSecured)
}

func (f *flags) setSecured() {
	f.set(fSecured)
}

func (f *flags) isAuthenticated() bool {
	return f.is(fAuthenticated)
}

func (f *flags) setAuthenticated() {
	f.set(fAuthenticated)
}

func (f *flags) isBound() bool {
	return f.is(fBound)
}

func (f *flags) setBound() {
	f.set(fBound)
}

func (f *flags) reset() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.fs = 0
}

func (f *flags) get() uint8 {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.fs
}

func (f *flags) is(flag uint8) bool {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.fs&flag > 0
}

func (f *flags) set(flag uint8) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.fs = f.fs | flag
}
