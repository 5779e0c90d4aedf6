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

package session

import (
	"fmt"
	"time"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
)

// A Session is a short lived record of a single authentication process. It is
// created per authentication attempt and tracks the process state until the
// requestor received its response or the session expired.
type Session struct {
	id    string
	state State

	requestorID  string
	user         identity.User
	forcedUserID string

	selectedProfile     *authentication.Profile
	candidateProfiles   []*authentication.Profile
	requestedProfileIDs []string

	tgtID      string
	locale     string
	forceAuthN bool

	expires time.Time

	attributes map[kssobridge.AttributeKey]interface{}
}

// New creates a new Session for the provided requestor.
func New(requestorID string) *Session {
	return &Session{
		state: StateCreated,

		requestorID: requestorID,

		attributes: make(map[kssobridge.AttributeKey]interface{}),
	}
}

// ID returns the id of the accociated session. The id is empty until the
// session was persisted for the first time.
func (s *Session) ID() string {
	return s.id
}

// SetID sets the id of the accociated session. It is called by the session
// store on first persist and must not be used elsewhere.
func (s *Session) SetID(id string) {
	s.id = id
}

// State returns the current processing state of the accociated session.
func (s *Session) State() State {
	return s.state
}

// UpdateState moves the accociated session to the provided state. It returns
// an error when the transition is not allowed.
func (s *Session) UpdateState(next State) error {
	if !s.state.CanTransition(next) {
		return fmt.Errorf("invalid session state transition from %s to %s", s.state, next)
	}
	s.state = next
	return nil
}

// RequestorID returns the id of the requestor which owns the accociated
// session.
func (s *Session) RequestorID() string {
	return s.requestorID
}

// User returns the authenticated user of the accociated session, nil while
// not authenticated.
func (s *Session) User() identity.User {
	return s.user
}

// SetUser binds the provided user to the accociated session.
func (s *Session) SetUser(user identity.User) {
	s.user = user
}

// ForcedUserID returns the pre-bound user id of the accociated session, empty
// when no user was forced by the requestor.
func (s *Session) ForcedUserID() string {
	return s.forcedUserID
}

// SetForcedUserID pre-binds the provided user id to the accociated session.
func (s *Session) SetForcedUserID(userID string) {
	s.forcedUserID = userID
}

// SelectedProfile returns the authentication profile selected for the
// accociated session, nil while none was selected.
func (s *Session) SelectedProfile() *authentication.Profile {
	return s.selectedProfile
}

// SetSelectedProfile sets the selected authentication profile.
func (s *Session) SetSelectedProfile(profile *authentication.Profile) {
	s.selectedProfile = profile
}

// CandidateProfiles returns the authentication profiles currently allowed for
// the accociated session.
func (s *Session) CandidateProfiles() []*authentication.Profile {
	return s.candidateProfiles
}

// SetCandidateProfiles sets the authentication profiles allowed for the
// accociated session.
func (s *Session) SetCandidateProfiles(profiles []*authentication.Profile) {
	s.candidateProfiles = profiles
}

// RequestedProfileIDs returns the explicitly requested authentication profile
// ids carried by the accociated session, as provided through proxy or
// federation context. Empty when no explicit request was made.
func (s *Session) RequestedProfileIDs() []string {
	return s.requestedProfileIDs
}

// SetRequestedProfileIDs sets the explicitly requested authentication profile
// ids.
func (s *Session) SetRequestedProfileIDs(ids []string) {
	s.requestedProfileIDs = ids
}

// TGTID returns the id of the TGT linked to the accociated session, empty
// when no TGT is linked.
func (s *Session) TGTID() string {
	return s.tgtID
}

// SetTGTID links the provided TGT id to the accociated session.
func (s *Session) SetTGTID(tgtID string) {
	s.tgtID = tgtID
}

// ForceAuthN returns true when the accociated session demands fresh
// authentication regardless of any existing TGT.
func (s *Session) ForceAuthN() bool {
	return s.forceAuthN
}

// SetForceAuthN marks the accociated session as demanding fresh
// authentication.
func (s *Session) SetForceAuthN(force bool) {
	s.forceAuthN = force
}

// Locale returns the locale of the accociated session.
func (s *Session) Locale() string {
	return s.locale
}

// SetLocale sets the locale of the accociated session.
func (s *Session) SetLocale(locale string) {
	s.locale = locale
}

// Expires returns the expiration time of the accociated session.
func (s *Session) Expires() time.Time {
	return s.expires
}

// SetExpires sets the expiration time of the accociated session. It is
// refreshed by the session store on persist.
func (s *Session) SetExpires(expires time.Time) {
	s.expires = expires
}

// IsExpired returns true when the accociated session is expired at the
// provided point in time.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.expires.IsZero() && !s.expires.After(now)
}

// Attribute returns the value stored in the accociated session's attribute
// bag for the provided key.
func (s *Session) Attribute(key kssobridge.AttributeKey) (interface{}, bool) {
	value, ok := s.attributes[key]
	return value, ok
}

// SetAttribute stores the provided value in the accociated session's
// attribute bag.
func (s *Session) SetAttribute(key kssobridge.AttributeKey, value interface{}) {
	s.attributes[key] = value
}

// DeleteAttribute removes the provided key from the accociated session's
// attribute bag.
func (s *Session) DeleteAttribute(key kssobridge.AttributeKey) {
	delete(s.attributes, key)
}
