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

package avatar

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/pkg/errors"

	xmpputil "github.com/jackal-xmpp/courier/pkg/util/xmpp"
)

const vCardNamespace = "vcard-temp"

// ErrNoPhoto is returned when the retrieved vCard carries no photo.
var ErrNoPhoto = errors.New("avatar: vcard has no photo")

type iqSender interface {
	SendIQ(ctx context.Context, iq stravaganza.Element) (*stravaganza.IQ, error)
}

// VCardRetriever retrieves avatars from vcard-temp photos.
type VCardRetriever struct {
	sender iqSender
}

// NewVCardRetriever returns a Retriever issuing vcard-temp requests through sender.
func NewVCardRetriever(sender iqSender) *VCardRetriever {
	return &VCardRetriever{sender: sender}
}

// Retrieve satisfies Retriever interface.
func (r *VCardRetriever) Retrieve(ctx context.Context, owner *jid.JID, _ string) (*Avatar, error) {
	iq := xmpputil.MakeIQ(uuid.New().String(), stravaganza.GetType, owner.ToBareJID().String(),
		stravaganza.NewBuilder("vCard").
			WithAttribute(stravaganza.Namespace, vCardNamespace).
			Build(),
	)

	res, err := r.sender.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	if res.Attribute(stravaganza.Type) == stravaganza.ErrorType {
		return nil, errors.Errorf("avatar: vcard request to %s failed: %s", owner.ToBareJID().String(), xmpputil.StanzaErrorCondition(res))
	}
	vCard := res.ChildNamespace("vCard", vCardNamespace)
	if vCard == nil {
		return nil, ErrNoPhoto
	}
	photo := vCard.Child("PHOTO")
	if photo == nil {
		return nil, ErrNoPhoto
	}
	binVal := photo.Child("BINVAL")
	if binVal == nil {
		return nil, ErrNoPhoto
	}
	data, err := base64.StdEncoding.DecodeString(stripWhitespace(binVal.Text()))
	if err != nil {
		return nil, errors.Wrap(err, "avatar: invalid photo encoding")
	}
	var mimeType string
	if typ := photo.Child("TYPE"); typ != nil {
		mimeType = strings.TrimSpace(typ.Text())
	}
	return &Avatar{
		Owner:    owner.ToBareJID(),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
