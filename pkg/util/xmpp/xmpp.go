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

package xmpputil

import (
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
)

// StanzaErrorNamespace is the namespace of stanza error defined conditions.
const StanzaErrorNamespace = "urn:ietf:params:xml:ns:xmpp-stanzas"

const undefinedCondition = "undefined-condition"

// MakeIQ creates an IQ request of type typ carrying child. An empty to addresses the account server.
func MakeIQ(id, typ, to string, child stravaganza.Element) stravaganza.Element {
	b := stravaganza.NewBuilder("iq").
		WithAttribute(stravaganza.ID, id).
		WithAttribute(stravaganza.Type, typ)
	if len(to) > 0 {
		b.WithAttribute(stravaganza.To, to)
	}
	if child != nil {
		b.WithChild(child)
	}
	return b.Build()
}

// MakeResultIQ creates a new result stanza derived from iq.
func MakeResultIQ(iq *stravaganza.IQ, queryChild stravaganza.Element) *stravaganza.IQ {
	b := iq.ResultBuilder()
	if queryChild != nil {
		b.WithChild(queryChild)
	}
	resIQ, _ := b.BuildIQ()
	return resIQ
}

// MakeErrorStanza creates an error stanza using errReason as reason.
func MakeErrorStanza(stanza stravaganza.Stanza, errReason stanzaerror.Reason) stravaganza.Element {
	return stanzaerror.E(errReason, stanza).Element()
}

// StanzaErrorCondition returns the defined condition carried by an error stanza.
func StanzaErrorCondition(stanza stravaganza.Element) string {
	errElem := stanza.Child("error")
	if errElem == nil {
		return undefinedCondition
	}
	for _, child := range errElem.AllChildren() {
		if child.Attribute(stravaganza.Namespace) == StanzaErrorNamespace && child.Name() != "text" {
			return child.Name()
		}
	}
	return undefinedCondition
}

// HasStanzaErrorCondition tells whether stanza is an error stanza carrying condition.
func HasStanzaErrorCondition(stanza stravaganza.Element, condition string) bool {
	errElem := stanza.Child("error")
	return errElem != nil && errElem.ChildNamespace(condition, StanzaErrorNamespace) != nil
}
