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

package sso

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/requestors"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// Service implements the single sign-on orchestration. It decides whether an
// existing TGT satisfies a request and merges new authentication results into
// TGTs.
type Service struct {
	mutex   sync.Mutex
	stopped bool

	enabled bool

	sessions storage.SessionStore
	tgts     storage.TGTStore

	authentication *authentication.Registry
	requestors     *requestors.Registry

	listenersMutex sync.RWMutex
	listeners      []tgt.Listener

	logger logrus.FieldLogger
}

// NewService creates a new SSO Service from the provided parameters.
func NewService(ctx context.Context, c *Config) (*Service, error) {
	if c.SessionStore == nil || c.TGTStore == nil {
		return nil, errors.New("sso service requires session and tgt stores")
	}
	if c.Authentication == nil || c.Requestors == nil {
		return nil, errors.New("sso service requires authentication and requestor registries")
	}

	s := &Service{
		enabled: c.Enabled,

		sessions: c.SessionStore,
		tgts:     c.TGTStore,

		authentication: c.Authentication,
		requestors:     c.Requestors,

		logger: c.Logger,
	}

	return s, nil
}

// Enabled returns whether or not single sign-on is globally enabled.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Sessions returns the session store of the accociated service.
func (s *Service) Sessions() storage.SessionStore {
	return s.sessions
}

// TGTs returns the TGT store of the accociated service.
func (s *Service) TGTs() storage.TGTStore {
	return s.tgts
}

// Requestors returns the requestor registry of the accociated service.
func (s *Service) Requestors() *requestors.Registry {
	return s.requestors
}

// Authentication returns the authentication registry of the accociated
// service.
func (s *Service) Authentication() *authentication.Registry {
	return s.authentication
}

// RegisterTGTEventListener adds the provided listener to the accociated
// service. Registered listeners run concurrently on TGT removal during
// logout.
func (s *Service) RegisterTGTEventListener(listener tgt.Listener) {
	s.listenersMutex.Lock()
	defer s.listenersMutex.Unlock()
	s.listeners = append(s.listeners, listener)
}

// DeregisterTGTEventListener removes the listener with the provided id from
// the accociated service.
func (s *Service) DeregisterTGTEventListener(id string) {
	s.listenersMutex.Lock()
	defer s.listenersMutex.Unlock()
	for idx, listener := range s.listeners {
		if listener.ID() == id {
			s.listeners = append(s.listeners[:idx], s.listeners[idx+1:]...)
			return
		}
	}
}

// TGTEventListeners returns the currently registered listeners of the
// accociated service.
func (s *Service) TGTEventListeners() []tgt.Listener {
	s.listenersMutex.RLock()
	defer s.listenersMutex.RUnlock()
	listeners := make([]tgt.Listener, len(s.listeners))
	copy(listeners, s.listeners)
	return listeners
}

// CheckSingleSignon decides whether the TGT with the provided id satisfies
// the authentication requirements of the provided session's requestor pool.
// It returns false without error when single sign-on cannot be used, an
// error is only returned for invalid requests or broken state.
func (s *Service) CheckSingleSignon(ctx context.Context, sess *session.Session, tgtID string) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	if tgtID == "" {
		return false, nil
	}

	t, err := s.tgts.Retrieve(ctx, tgtID)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, NewInternalError("failed to retrieve tgt", err)
	}
	if t.IsExpired(time.Now()) {
		return false, nil
	}

	// A forced user id on the session must match the TGT's bound user. A
	// mismatch invalidates the whole TGT before the error is raised.
	if forcedUserID := sess.ForcedUserID(); forcedUserID != "" {
		if t.User() == nil || t.User().Subject() != forcedUserID {
			t.Expire()
			if persistErr := s.tgts.Persist(ctx, t); persistErr != nil {
				s.logger.WithError(persistErr).Errorln("failed to persist expired tgt after forced user mismatch")
			}
			return false, NewUserError(kssobridge.EventTGTUserInvalid, "tgt user does not match forced user")
		}
	}

	if sess.ForceAuthN() {
		return false, nil
	}

	sufficient := s.isSufficient(t, sess)
	if sufficient && len(sess.RequestedProfileIDs()) > 0 {
		sufficient = s.satisfiesRequestedProfiles(t, sess.RequestedProfileIDs())
	}
	if sufficient && !s.MatchShadowIDP(sess, t) {
		sufficient = false
	}

	if !sufficient {
		return false, nil
	}

	t.AddRequestorID(sess.RequestorID())
	if err := s.tgts.Persist(ctx, t); err != nil {
		return false, NewInternalError("failed to persist tgt", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session":   sess.ID(),
		"requestor": sess.RequestorID(),
		"tgt":       t.ID(),
	}).Debugln("single sign-on check passed")

	return true, nil
}

// isSufficient evaluates whether the provided TGT satisfies at least one of
// the authentication profiles required by the session's requestor pool.
func (s *Service) isSufficient(t *tgt.TGT, sess *session.Session) bool {
	pool := s.requestors.PoolForRequestor(sess.RequestorID())
	if pool == nil || len(pool.RequiredProfiles) == 0 {
		// Fail closed, a requestor without pool requirements cannot
		// resume a session.
		return false
	}

	for _, profileID := range pool.RequiredProfiles {
		profile, ok := s.authentication.Profile(profileID)
		if !ok || !profile.Enabled() {
			continue
		}
		if t.AuthenticationProfile().Satisfies(profile) {
			return true
		}
	}

	return false
}

// satisfiesRequestedProfiles evaluates whether the provided TGT satisfies at
// least one of the explicitly requested authentication profiles.
func (s *Service) satisfiesRequestedProfiles(t *tgt.TGT, profileIDs []string) bool {
	for _, profileID := range profileIDs {
		profile, ok := s.authentication.Profile(profileID)
		if !ok {
			continue
		}
		if t.AuthenticationProfile().Satisfies(profile) {
			return true
		}
	}

	return false
}

// MatchShadowIDP correlates the IDP alias of the current request with the
// shadow IDP bookkeeping of the provided TGT. The check trivially passes
// when the request carries no alias. A missing mapping is a mismatch, never
// an error.
func (s *Service) MatchShadowIDP(sess *session.Session, t *tgt.TGT) bool {
	aliasValue, ok := sess.Attribute(AttributeShadowIDPAlias)
	if !ok {
		return true
	}
	alias, _ := aliasValue.(string)
	if alias == "" {
		return true
	}

	mappingValue, ok := t.Attribute(AttributeShadowIDPs)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"session": sess.ID(),
			"alias":   alias,
		}).Warnln("shadow idp check failed, tgt has no shadow idp bookkeeping")
		return false
	}
	mapping, _ := mappingValue.(map[string]string)
	if _, ok := mapping[alias]; !ok {
		s.logger.WithFields(logrus.Fields{
			"session": sess.ID(),
			"alias":   alias,
		}).Warnln("shadow idp check failed, alias unknown to tgt")
		return false
	}

	return true
}

// HandleSingleSignon merges the successful authentication recorded on the
// provided session into the session's TGT, creating a new TGT when the
// session carries none. The resulting TGT id is stored on the session, the
// session itself is not persisted, that is the caller's responsibility.
func (s *Service) HandleSingleSignon(ctx context.Context, sess *session.Session) (*tgt.TGT, error) {
	if !s.enabled {
		return nil, nil
	}

	var t *tgt.TGT
	var err error
	if sess.TGTID() == "" {
		t = s.tgts.Create(ctx, sess.User())
	} else {
		t, err = s.tgts.Retrieve(ctx, sess.TGTID())
		if err != nil {
			// A session with a TGT id whose TGT cannot be retrieved
			// indicates broken state, not a user problem.
			return nil, NewInternalError("session tgt cannot be retrieved", err)
		}
	}

	selected := sess.SelectedProfile()
	if selected == nil {
		return nil, NewInternalError("session has no selected authentication profile", nil)
	}

	disabledMethods := sessionDisabledSSOMethods(sess)
	for _, method := range selected.Methods() {
		if t.AuthenticationProfile().Contains(method.ID) {
			continue
		}
		if method.DisableSSO || disabledMethods[method.ID] {
			// Keep the skip visible on the session but never let the
			// method leak into the TGT.
			disabledMethods[method.ID] = true
			continue
		}
		t.AddAuthenticationMethod(method.ID)
	}
	if len(disabledMethods) > 0 {
		sess.SetAttribute(AttributeDisabledSSOMethods, disabledMethods)
	}

	t.AddProfileID(selected.ID())
	t.AddRequestorID(sess.RequestorID())

	s.recordShadowIDP(sess, t)
	s.recordSessionIndex(sess, t)

	if err := s.tgts.Persist(ctx, t); err != nil {
		return nil, NewInternalError("failed to persist tgt", err)
	}
	sess.SetTGTID(t.ID())

	s.logger.WithFields(logrus.Fields{
		"session":   sess.ID(),
		"requestor": sess.RequestorID(),
		"tgt":       t.ID(),
		"profile":   selected.ID(),
	}).Debugln("single sign-on handled")

	return t, nil
}

// recordShadowIDP copies the session's proxy context into the TGT's shadow
// IDP bookkeeping, together with the requestor which signed on through the
// alias.
func (s *Service) recordShadowIDP(sess *session.Session, t *tgt.TGT) {
	aliasValue, ok := sess.Attribute(AttributeShadowIDPAlias)
	if !ok {
		return
	}
	alias, _ := aliasValue.(string)
	entityIDValue, ok := sess.Attribute(AttributeShadowIDPEntityID)
	if !ok {
		return
	}
	entityID, _ := entityIDValue.(string)
	if alias == "" || entityID == "" {
		return
	}

	var mapping map[string]string
	if mappingValue, ok := t.Attribute(AttributeShadowIDPs); ok {
		mapping, _ = mappingValue.(map[string]string)
	}
	if mapping == nil {
		mapping = make(map[string]string)
	}
	mapping[alias] = entityID
	t.SetAttribute(AttributeShadowIDPs, mapping)

	var owners map[string]string
	if ownersValue, ok := t.Attribute(AttributeShadowIDPRequestors); ok {
		owners, _ = ownersValue.(map[string]string)
	}
	if owners == nil {
		owners = make(map[string]string)
	}
	owners[alias] = sess.RequestorID()
	t.SetAttribute(AttributeShadowIDPRequestors, owners)
}

// recordSessionIndex copies the remote authority session index of the
// session into the TGT for later federated logout.
func (s *Service) recordSessionIndex(sess *session.Session, t *tgt.TGT) {
	authorityIDValue, ok := sess.Attribute(AttributeRemoteAuthorityID)
	if !ok {
		return
	}
	authorityID, _ := authorityIDValue.(string)
	sessionIndexValue, ok := sess.Attribute(AttributeRemoteSessionIndex)
	if !ok {
		return
	}
	sessionIndex, _ := sessionIndexValue.(string)
	if authorityID == "" || sessionIndex == "" {
		return
	}

	var indexes map[string]string
	if indexesValue, ok := t.Attribute(AttributeSessionIndexes); ok {
		indexes, _ = indexesValue.(map[string]string)
	}
	if indexes == nil {
		indexes = make(map[string]string)
	}
	indexes[authorityID] = sessionIndex
	t.SetAttribute(AttributeSessionIndexes, indexes)
}

// Restart reinitializes the accociated service. It is synchronized against
// concurrent Stop and Restart calls so no request is served while the
// service reconfigures.
func (s *Service) Restart(ctx context.Context, c *Config) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if c != nil {
		s.enabled = c.Enabled
		if c.Authentication != nil {
			s.authentication = c.Authentication
		}
		if c.Requestors != nil {
			s.requestors = c.Requestors
		}
	}
	s.stopped = false

	s.logger.Infoln("sso service restarted")
	return nil
}

// Stop stops the accociated service.
func (s *Service) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stopped = true
}

func sessionDisabledSSOMethods(sess *session.Session) map[string]bool {
	if value, ok := sess.Attribute(AttributeDisabledSSOMethods); ok {
		if disabled, ok := value.(map[string]bool); ok {
			return disabled
		}
	}
	return make(map[string]bool)
}

// userSubject returns the subject of the provided user, empty for nil users.
func userSubject(user identity.User) string {
	if user == nil {
		return ""
	}
	return user.Subject()
}
