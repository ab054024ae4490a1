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

import (
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"

	"github.com/jackal-xmpp/courier/pkg/sasl"
)

const (
	tlsNamespace     = "urn:ietf:params:xml:ns:xmpp-tls"
	bindNamespace    = "urn:ietf:params:xml:ns:xmpp-bind"
	sessionNamespace = "urn:ietf:params:xml:ns:xmpp-session"
)

// streamFeatures is the feature set advertised by the server at the beginning of each stream.
type streamFeatures struct {
	startTLS         bool
	startTLSRequired bool
	mechanisms       []string
	bind             bool
	session          bool
	sessionOptional  bool
}

func parseFeatures(elem stravaganza.Element) streamFeatures {
	var f streamFeatures
	if st := elem.ChildNamespace("starttls", tlsNamespace); st != nil {
		f.startTLS = true
		f.startTLSRequired = st.Child("required") != nil
	}
	if ms := elem.ChildNamespace("mechanisms", sasl.Namespace); ms != nil {
		for _, m := range ms.Children("mechanism") {
			if name := strings.TrimSpace(m.Text()); len(name) > 0 {
				f.mechanisms = append(f.mechanisms, name)
			}
		}
	}
	f.bind = elem.ChildNamespace("bind", bindNamespace) != nil
	if ss := elem.ChildNamespace("session", sessionNamespace); ss != nil {
		f.session = true
		f.sessionOptional = ss.Child("optional") != nil
	}
	return f
}

// requiresSession tells whether a legacy session must be established after binding.
func (f streamFeatures) requiresSession() bool {
	return f.session && !f.sessionOptional
}
