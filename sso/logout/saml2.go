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

package logout

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/nameid"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// SAML2MethodID is the id under which the SAML2 federated logout method
// registers.
const SAML2MethodID = "saml2"

// SAML2Method implements federated logout through a SAML2 single logout
// exchange with the remote authority which authenticated the TGT's user.
type SAML2Method struct {
	authorities *authorities.Registry
	formatter   nameid.Formatter

	localEntityID string

	logger logrus.FieldLogger
}

// NewSAML2Method creates a new SAML2Method with the provided parameters.
func NewSAML2Method(registry *authorities.Registry, formatter nameid.Formatter, localEntityID string, logger logrus.FieldLogger) *SAML2Method {
	return &SAML2Method{
		authorities: registry,
		formatter:   formatter,

		localEntityID: localEntityID,

		logger: logger,
	}
}

// ID implements the Method interface.
func (m *SAML2Method) ID() string {
	return SAML2MethodID
}

// CanHandle implements the Method interface. A session and TGT can be
// handled when the TGT's user originates from a remote authority which
// announces a single logout service and a session index was recorded for
// that authority at authentication time.
func (m *SAML2Method) CanHandle(ctx context.Context, sess *session.Session, t *tgt.TGT) bool {
	if t == nil || t.User() == nil {
		return false
	}

	authority, sessionIndex, err := m.resolve(ctx, t)
	if err != nil {
		return false
	}

	return authority.HasSingleLogoutService() && sessionIndex != ""
}

// Logout implements the Method interface.
func (m *SAML2Method) Logout(ctx context.Context, sess *session.Session, t *tgt.TGT, state string) (Status, *url.URL, error) {
	authority, sessionIndex, err := m.resolve(ctx, t)
	if err != nil {
		return StatusFailed, nil, err
	}

	details := authority.Authority()
	nameID, err := m.formatter.Format(t.User(), details.EntityID, t.ID(), sess)
	if err != nil {
		return StatusFailed, nil, err
	}

	uri, err := details.MakeRedirectLogoutRequestURL(nameID, sessionIndex, state)
	if err != nil {
		return StatusFailed, nil, err
	}

	sess.SetAttribute(sso.AttributeRemoteAuthorityID, authority.ID())
	m.logger.WithFields(logrus.Fields{
		"authority":     authority.ID(),
		"session_index": sessionIndex,
	}).Debugln("starting saml2 single logout")

	return StatusInProgress, uri, nil
}

// FinishLogout implements the Method interface.
func (m *SAML2Method) FinishLogout(ctx context.Context, req *http.Request, sess *session.Session, t *tgt.TGT) (Status, error) {
	var authorityID string
	if value, ok := sess.Attribute(sso.AttributeRemoteAuthorityID); ok {
		authorityID, _ = value.(string)
	}
	authority, ok := m.authorities.Lookup(ctx, authorityID)
	if !ok {
		return StatusFailed, errors.New("no authority for in flight logout")
	}

	if err := authority.Authority().ValidateLogoutResponse(req); err != nil {
		m.logger.WithError(err).WithField("authority", authorityID).Debugln("saml2 single logout response invalid")
		return StatusFailed, err
	}

	return StatusLoggedOut, nil
}

// resolve looks up the remote authority of the provided TGT's user together
// with the session index recorded for it. Users of the local entity or of
// unknown authorities yield an error.
func (m *SAML2Method) resolve(ctx context.Context, t *tgt.TGT) (authorities.AuthorityRegistration, string, error) {
	userWithOrganization, ok := t.User().(identity.UserWithOrganization)
	if !ok {
		return nil, "", errors.New("user has no organization")
	}

	organization := userWithOrganization.Organization()
	if organization == "" || organization == m.localEntityID {
		return nil, "", errors.New("user organization is local")
	}

	authority, ok := m.authorities.LookupByEntityID(ctx, organization)
	if !ok {
		return nil, "", errors.New("no authority for user organization")
	}

	var sessionIndex string
	if value, withIndexes := t.Attribute(sso.AttributeSessionIndexes); withIndexes {
		if sessionIndexes, isMap := value.(map[string]string); isMap {
			sessionIndex = sessionIndexes[authority.ID()]
		}
	}

	return authority, sessionIndex, nil
}
