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
	"strconv"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/pkg/errors"
)

// VCardUpdateNamespace is the namespace of the presence avatar hash extension.
const VCardUpdateNamespace = "vcard-temp:x:update"

const langAttribute = "xml:lang"

// Classify translates an incoming stanza into its event variant.
// Roster queries are not classified here since they require an acknowledgement.
func Classify(elem stravaganza.Element) Event {
	switch stanza := elem.(type) {
	case *stravaganza.Message:
		return IncomingMessage{Message: stanza}

	case *stravaganza.Presence:
		pc, err := NewPresenceChange(stanza)
		if err != nil {
			return Other{Element: elem, Err: err}
		}
		return pc

	default:
		return Other{Element: elem}
	}
}

// NewPresenceChange decodes a presence stanza into a PresenceChange event.
func NewPresenceChange(pr *stravaganza.Presence) (PresenceChange, error) {
	pc := PresenceChange{
		From:     pr.FromJID(),
		Type:     pr.Attribute(stravaganza.Type),
		Presence: pr,
	}
	if shs := pr.Children("show"); len(shs) > 0 {
		if len(shs) > 1 {
			return PresenceChange{}, errors.New("event: presence contains more than one <show/> element")
		}
		switch show := strings.TrimSpace(shs[0].Text()); show {
		case "away", "chat", "dnd", "xa":
			pc.Show = show
		default:
			return PresenceChange{}, fmt.Errorf("event: invalid presence show state: %s", show)
		}
	}
	if sts := pr.Children("status"); len(sts) > 0 {
		statuses, err := decodeStatuses(pr.Attribute(langAttribute), sts)
		if err != nil {
			return PresenceChange{}, err
		}
		pc.Statuses = statuses
		pc.Status = sts[0].Text()
		if st, ok := statuses[pr.Attribute(langAttribute)]; ok {
			pc.Status = st
		}
	}
	if ps := pr.Children("priority"); len(ps) > 0 {
		if len(ps) > 1 {
			return PresenceChange{}, errors.New("event: presence contains more than one <priority/> element")
		}
		p, err := strconv.Atoi(strings.TrimSpace(ps[0].Text()))
		if err != nil {
			return PresenceChange{}, errors.Wrap(err, "event: invalid presence priority")
		}
		if p < -128 || p > 127 {
			return PresenceChange{}, fmt.Errorf("event: presence priority out of range: %d", p)
		}
		pc.Priority = int8(p)
	}
	if x := pr.ChildNamespace("x", VCardUpdateNamespace); x != nil {
		if photo := x.Child("photo"); photo != nil {
			pc.AvatarHash = strings.TrimSpace(photo.Text())
		}
	}
	return pc, nil
}

// decodeStatuses maps every status text to its language. Statuses lacking xml:lang
// inherit the stanza one, and two statuses in the same language are rejected.
func decodeStatuses(defaultLang string, sts []stravaganza.Element) (map[string]string, error) {
	statuses := make(map[string]string, len(sts))
	for _, st := range sts {
		lang := st.Attribute(langAttribute)
		if len(lang) == 0 {
			lang = defaultLang
		}
		if _, ok := statuses[lang]; ok {
			return nil, fmt.Errorf("event: presence contains more than one <status/> element for language '%s'", lang)
		}
		statuses[lang] = st.Text()
	}
	return statuses, nil
}
