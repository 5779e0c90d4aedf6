/*
 * Copyright 2020 Kopano and its licensors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package tgt

import (
	"time"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
)

// A TGT is the ticket granting ticket single sign-on credential of an
// authenticated user. It is shared by the sessions of all requestors which
// used it during its lifetime, the cookie on the user agent is the longest
// holder of its id.
type TGT struct {
	id   string
	user identity.User

	profile    *authentication.Accumulated
	profileIDs []string

	requestorIDs []string

	expires time.Time
	expired bool

	attributes map[kssobridge.AttributeKey]interface{}
}

// New creates a new unsaved TGT for the provided user.
func New(user identity.User) *TGT {
	return &TGT{
		user: user,

		profile: authentication.NewAccumulated(),

		attributes: make(map[kssobridge.AttributeKey]interface{}),
	}
}

// ID returns the id of the accociated TGT. The id is empty until the TGT was
// persisted for the first time.
func (t *TGT) ID() string {
	return t.id
}

// SetID sets the id of the accociated TGT. It is called by the TGT store on
// first persist and must not be used elsewhere.
func (t *TGT) SetID(id string) {
	t.id = id
}

// User returns the user bound to the accociated TGT.
func (t *TGT) User() identity.User {
	return t.user
}

// AuthenticationProfile returns the accumulated satisfied authentication
// methods of the accociated TGT. Methods are only ever added within a TGT's
// lifetime, never removed.
func (t *TGT) AuthenticationProfile() *authentication.Accumulated {
	return t.profile
}

// AddAuthenticationMethod records the provided method id as satisfied on the
// accociated TGT. It returns false when the method was already recorded.
func (t *TGT) AddAuthenticationMethod(methodID string) bool {
	return t.profile.Add(methodID)
}

// ProfileIDs returns the ids of all authentication profiles satisfied by the
// accociated TGT.
func (t *TGT) ProfileIDs() []string {
	ids := make([]string, len(t.profileIDs))
	copy(ids, t.profileIDs)
	return ids
}

// AddProfileID records the provided profile id as satisfied on the accociated
// TGT, ignoring duplicates.
func (t *TGT) AddProfileID(profileID string) {
	for _, id := range t.profileIDs {
		if id == profileID {
			return
		}
	}
	t.profileIDs = append(t.profileIDs, profileID)
}

// RequestorIDs returns the ids of all requestors which used the accociated
// TGT, most recently used last.
func (t *TGT) RequestorIDs() []string {
	ids := make([]string, len(t.requestorIDs))
	copy(ids, t.requestorIDs)
	return ids
}

// AddRequestorID appends the provided requestor id to the accociated TGT's
// requestor list. A requestor id is recorded at most once, adding an already
// known id moves it to the tail so the list stays ordered by most recent use.
func (t *TGT) AddRequestorID(requestorID string) {
	t.RemoveRequestorID(requestorID)
	t.requestorIDs = append(t.requestorIDs, requestorID)
}

// RemoveRequestorID removes the provided requestor id from the accociated
// TGT's requestor list. Removing an unknown id is a no-op.
func (t *TGT) RemoveRequestorID(requestorID string) {
	for idx, id := range t.requestorIDs {
		if id == requestorID {
			t.requestorIDs = append(t.requestorIDs[:idx], t.requestorIDs[idx+1:]...)
			return
		}
	}
}

// Expires returns the expiration time of the accociated TGT.
func (t *TGT) Expires() time.Time {
	return t.expires
}

// SetExpires sets the expiration time of the accociated TGT. It is refreshed
// by the TGT store on persist.
func (t *TGT) SetExpires(expires time.Time) {
	t.expires = expires
}

// Expire marks the accociated TGT expired. Persisting an expired TGT removes
// it from its store.
func (t *TGT) Expire() {
	t.expired = true
}

// IsExpired returns true when the accociated TGT was marked expired or its
// expiration time passed the provided point in time.
func (t *TGT) IsExpired(now time.Time) bool {
	if t.expired {
		return true
	}
	return !t.expires.IsZero() && !t.expires.After(now)
}

// Attribute returns the value stored in the accociated TGT's attribute bag
// for the provided key.
func (t *TGT) Attribute(key kssobridge.AttributeKey) (interface{}, bool) {
	value, ok := t.attributes[key]
	return value, ok
}

// SetAttribute stores the provided value in the accociated TGT's attribute
// bag.
func (t *TGT) SetAttribute(key kssobridge.AttributeKey, value interface{}) {
	t.attributes[key] = value
}

// DeleteAttribute removes the provided key from the accociated TGT's
// attribute bag.
func (t *TGT) DeleteAttribute(key kssobridge.AttributeKey) {
	delete(t.attributes, key)
}
