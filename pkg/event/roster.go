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

package event

import (
	"fmt"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/pkg/errors"
)

// RosterNamespace is the roster query namespace.
const RosterNamespace = "jabber:iq:roster"

const (
	// SubscriptionNone represents 'none' subscription value.
	SubscriptionNone = "none"

	// SubscriptionFrom represents 'from' subscription value.
	SubscriptionFrom = "from"

	// SubscriptionTo represents 'to' subscription value.
	SubscriptionTo = "to"

	// SubscriptionBoth represents 'both' subscription value.
	SubscriptionBoth = "both"

	// SubscriptionRemove represents 'remove' subscription value.
	SubscriptionRemove = "remove"
)

// RosterItem represents a single roster entry.
type RosterItem struct {
	// JID is the contact JID.
	JID *jid.JID

	// Name is the contact handle.
	Name string

	// Subscription is the subscription state. Defaults to 'none'.
	Subscription string

	// Ask tells whether an outgoing subscription request is pending.
	Ask bool

	// Groups contains the groups the contact belongs to.
	Groups []string
}

// NewRosterChange decodes a roster query element into a RosterChange event.
func NewRosterChange(query stravaganza.Element, snapshot bool) (RosterChange, error) {
	if query == nil {
		return RosterChange{Snapshot: snapshot}, nil
	}
	if query.Name() != "query" || query.Attribute(stravaganza.Namespace) != RosterNamespace {
		return RosterChange{}, fmt.Errorf("event: unexpected roster element <%s>", query.Name())
	}
	rc := RosterChange{
		Snapshot: snapshot,
		Version:  query.Attribute("ver"),
	}
	for _, elem := range query.AllChildren() {
		itm, err := decodeRosterItem(elem)
		if err != nil {
			return RosterChange{}, err
		}
		rc.Items = append(rc.Items, itm)
	}
	return rc, nil
}

func decodeRosterItem(elem stravaganza.Element) (RosterItem, error) {
	if elem.Name() != "item" {
		return RosterItem{}, fmt.Errorf("event: invalid roster item element name: %s", elem.Name())
	}
	jidStr := elem.Attribute("jid")
	if len(jidStr) == 0 {
		return RosterItem{}, errors.New("event: roster item 'jid' attribute is required")
	}
	j, err := jid.NewWithString(jidStr, false)
	if err != nil {
		return RosterItem{}, errors.Wrap(err, "event: invalid roster item jid")
	}
	ri := RosterItem{
		JID:          j,
		Name:         elem.Attribute("name"),
		Subscription: SubscriptionNone,
	}
	if sub := elem.Attribute("subscription"); len(sub) > 0 {
		switch sub {
		case SubscriptionBoth, SubscriptionFrom, SubscriptionTo, SubscriptionNone, SubscriptionRemove:
			ri.Subscription = sub
		default:
			return RosterItem{}, fmt.Errorf("event: unrecognized 'subscription' enum type: %s", sub)
		}
	}
	if ask := elem.Attribute("ask"); len(ask) > 0 {
		if ask != "subscribe" {
			return RosterItem{}, fmt.Errorf("event: unrecognized 'ask' enum type: %s", ask)
		}
		ri.Ask = true
	}
	for _, group := range elem.Children("group") {
		if len(group.Text()) > 0 {
			ri.Groups = append(ri.Groups, group.Text())
		}
	}
	return ri, nil
}
