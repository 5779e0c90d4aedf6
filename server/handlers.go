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

package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/backends"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/logout"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
	"stash.kopano.io/kc/kssobridge/utils"
)

func (s *Server) handleAuthenticate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	payload := &authenticateRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if payload.RequestorID == "" {
		utils.WriteErrorPage(rw, http.StatusBadRequest, string(kssobridge.EventRequestInvalid), "requestor_id parameter is required")
		return
	}

	forcedUserID := payload.ForcedUserID
	if forcedUserID != "" {
		// Forced user ids are only honored from trusted sources.
		if trusted, _ := utils.IsRequestFromTrustedSource(req, s.cfg.TrustedProxyIPs, s.cfg.TrustedProxyNets); !trusted {
			s.logger.WithField("user_id", forcedUserID).Debugln("ignoring forced user id from untrusted source")
			forcedUserID = ""
		}
	}

	sess, err := s.sso.StartSession(ctx, payload.RequestorID, forcedUserID, payload.ProfileIDs)
	if err != nil {
		s.writeError(rw, req, nil, err)
		return
	}
	if payload.IDPAlias != "" {
		sess.SetAttribute(sso.AttributeShadowIDPAlias, payload.IDPAlias)
	}

	// Single sign-on fast path.
	signedOn, err := s.sso.CheckSingleSignon(ctx, sess, s.tgtIDFromCookie(req))
	if err != nil {
		if sso.IsUserErrorWithEvent(err, kssobridge.EventTGTUserInvalid) {
			s.removeTGTCookie(rw)
		}
		s.writeError(rw, req, sess, err)
		return
	}
	if signedOn {
		metricSSOChecks.WithLabelValues("hit").Inc()
		s.finishAuthenticate(rw, sess)
		return
	}
	metricSSOChecks.WithLabelValues("miss").Inc()

	// Interactive path.
	if err = s.sso.BeginAuthNSelection(ctx, sess); err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	profileID := payload.ProfileID
	if profileID == "" {
		profileID = sess.CandidateProfiles()[0].ID()
	}
	if err = s.sso.SelectProfile(ctx, sess, profileID); err != nil {
		s.writeError(rw, req, sess, err)
		return
	}
	if err = s.sso.BeginAuthentication(ctx, sess); err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	if payload.Username == "" {
		// Without local credentials authentication is delegated to the
		// default remote authority when one is configured and ready.
		if authority := s.defaultRemoteAuthority(ctx); authority != nil {
			s.beginRemoteAuthentication(rw, req, sess, authority)
			return
		}
		utils.WriteErrorPage(rw, http.StatusUnauthorized, string(kssobridge.EventAuthNFailed), "logon is required")
		return
	}
	success, user, err := s.backend.Logon(ctx, payload.Username, payload.Password)
	if err != nil {
		s.logger.WithError(err).Errorln("backend logon failed")
		utils.WriteErrorPage(rw, http.StatusInternalServerError, string(kssobridge.EventInternalError), "")
		return
	}
	if !success {
		metricLogons.WithLabelValues("failed").Inc()
		utils.WriteErrorPage(rw, http.StatusUnauthorized, string(kssobridge.EventAuthNFailed), "wrong username or password")
		return
	}
	metricLogons.WithLabelValues("success").Inc()

	if err = s.sso.CompleteAuthentication(ctx, sess, user); err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	if tgtID := sess.TGTID(); tgtID != "" {
		if cookieErr := s.setTGTCookie(rw, tgtID); cookieErr != nil {
			s.logger.WithError(cookieErr).Errorln("failed to set tgt cookie")
		}
	}

	s.finishAuthenticate(rw, sess)
}

func (s *Server) finishAuthenticate(rw http.ResponseWriter, sess *session.Session) {
	if err := s.setSessionCookie(rw, sess.ID()); err != nil {
		s.logger.WithError(err).Errorln("failed to set session cookie")
	}

	requestor, ok := s.sso.Requestors().Get(sess.RequestorID())
	if !ok || requestor.ProfileURI == "" {
		utils.WriteJSON(rw, http.StatusOK, &authenticatedRedirectParams{
			SessionID: sess.ID(),
			Status:    "ok",
		}, "")
		return
	}

	uri, err := url.Parse(requestor.ProfileURI)
	if err != nil {
		s.logger.WithError(err).Errorln("invalid requestor profile uri")
		utils.WriteErrorPage(rw, http.StatusInternalServerError, string(kssobridge.EventInternalError), "")
		return
	}

	utils.WriteRedirect(rw, http.StatusFound, uri, &authenticatedRedirectParams{
		SessionID: sess.ID(),
		Status:    "ok",
	}, false)
}

// defaultRemoteAuthority returns the ready default remote authority, nil
// when none is configured or it is not ready yet.
func (s *Server) defaultRemoteAuthority(ctx context.Context) *authorities.Details {
	if s.authorities == nil {
		return nil
	}
	registration := s.authorities.Default(ctx)
	if registration == nil {
		return nil
	}

	authority := registration.Authority()
	if !authority.IsReady() {
		return nil
	}

	return authority
}

// beginRemoteAuthentication redirects the user agent to the provided remote
// authority with a fresh authentication request. The request correlation
// data is stashed on the session for the assertion consumer service.
func (s *Server) beginRemoteAuthentication(rw http.ResponseWriter, req *http.Request, sess *session.Session, authority *authorities.Details) {
	ctx := req.Context()

	if s.stateToken == nil {
		s.writeError(rw, req, sess, sso.NewInternalError("remote authentication requires a state token signer", nil))
		return
	}
	state, err := s.stateToken.Sign(sess.ID())
	if err != nil {
		s.writeError(rw, req, sess, sso.NewInternalError("failed to sign remote authentication state", err))
		return
	}

	uri, extra, err := authority.MakeRedirectAuthenticationRequestURL(state)
	if err != nil {
		s.writeError(rw, req, sess, sso.NewInternalError("failed to create remote authentication request", err))
		return
	}

	sess.SetAttribute(sso.AttributeRemoteAuthorityID, authority.ID)
	sess.SetAttribute(sso.AttributeRemoteAuthNExtra, extra)
	if err = s.sso.Sessions().Persist(ctx, sess); err != nil {
		s.writeError(rw, req, sess, sso.NewInternalError("failed to persist session", err))
		return
	}

	if cookieErr := s.setSessionCookie(rw, sess.ID()); cookieErr != nil {
		s.logger.WithError(cookieErr).Errorln("failed to set session cookie")
	}

	s.logger.WithFields(logrus.Fields{
		"session":   sess.ID(),
		"authority": authority.ID,
	}).Debugln("delegating authentication to remote authority")

	utils.WriteRedirect(rw, http.StatusFound, uri, nil, false)
}

// handleSAML2Acs is the assertion consumer service. It correlates the posted
// response with the initiating session through the relay state, validates
// the assertion against the session's remote authority and completes the
// session's authentication with the asserted user.
func (s *Server) handleSAML2Acs(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	payload := &saml2AcsRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if payload.RelayState == "" || s.stateToken == nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, string(kssobridge.EventRequestInvalid), "RelayState parameter is required")
		return
	}

	sessionID, err := s.stateToken.Validate(payload.RelayState)
	if err != nil {
		s.logger.WithError(err).Debugln("invalid saml2 relay state")
		utils.WriteErrorPage(rw, http.StatusBadRequest, string(kssobridge.EventRequestInvalid), "invalid relay state")
		return
	}
	sess := s.retrieveSession(req, sessionID)
	if sess == nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, string(kssobridge.EventRequestInvalid), "no session for relay state")
		return
	}

	var authorityID string
	if value, ok := sess.Attribute(sso.AttributeRemoteAuthorityID); ok {
		authorityID, _ = value.(string)
	}
	var authority *authorities.Details
	if s.authorities != nil {
		if registration, ok := s.authorities.Lookup(ctx, authorityID); ok {
			authority = registration.Authority()
		}
	}
	if authority == nil {
		s.writeError(rw, req, sess, sso.NewUserError(kssobridge.EventRequestInvalid, "no authority for relay state"))
		return
	}

	var extra map[string]interface{}
	if value, ok := sess.Attribute(sso.AttributeRemoteAuthNExtra); ok {
		extra, _ = value.(map[string]interface{})
	}
	sess.DeleteAttribute(sso.AttributeRemoteAuthNExtra)

	assertion, err := authority.ParseStateResponse(req, payload.RelayState, extra)
	if err != nil {
		metricLogons.WithLabelValues("failed").Inc()
		s.logger.WithError(err).WithField("authority", authority.ID).Debugln("saml2 assertion rejected")
		utils.WriteErrorPage(rw, http.StatusUnauthorized, string(kssobridge.EventAuthNFailed), "remote authentication failed")
		return
	}

	subject, err := authority.IdentityClaimValue(assertion)
	if err != nil {
		metricLogons.WithLabelValues("failed").Inc()
		s.logger.WithError(err).WithField("authority", authority.ID).Debugln("saml2 assertion carries no usable identity")
		utils.WriteErrorPage(rw, http.StatusUnauthorized, string(kssobridge.EventAuthNFailed), "remote authentication failed")
		return
	}
	metricLogons.WithLabelValues("success").Inc()

	if sessionIndex := authority.SessionIndexValue(assertion); sessionIndex != "" {
		sess.SetAttribute(sso.AttributeRemoteSessionIndex, sessionIndex)
	}
	sess.SetAttribute(sso.AttributeShadowIDPEntityID, authority.EntityID)

	user := backends.NewUser(subject, subject, authority.EntityID, nil)
	if err = s.sso.CompleteAuthentication(ctx, sess, user); err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	if tgtID := sess.TGTID(); tgtID != "" {
		if cookieErr := s.setTGTCookie(rw, tgtID); cookieErr != nil {
			s.logger.WithError(cookieErr).Errorln("failed to set tgt cookie")
		}
	}

	s.finishAuthenticate(rw, sess)
}

func (s *Server) handleLogout(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	metricLogouts.WithLabelValues("default").Inc()

	payload := &logoutRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	sess := s.resolveSession(req, payload.SessionID)
	t := s.resolveTGT(req, sess)

	var state string
	if s.stateToken != nil && sess != nil {
		if signed, err := s.stateToken.Sign(sess.ID()); err == nil {
			state = signed
		} else {
			s.logger.WithError(err).Warnln("failed to sign logout state token")
		}
	}

	outcome, err := s.logout.ProcessDefault(ctx, sess, t, payload.Confirm, state)
	if err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	s.finishLogout(rw, outcome)
}

func (s *Server) handleLogoutState(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	metricLogouts.WithLabelValues("state").Inc()

	// Cross origin callers must match the configured allow list. Requests
	// from our own origin and requests without origin information pass.
	if origin := utils.OriginFromRequestHeaders(req.Header); origin != "" && origin != s.baseURI.Scheme+"://"+s.baseURI.Host {
		if len(s.logoutStateOrigins) > 0 && !s.logoutStateOrigins["*"] && !s.logoutStateOrigins[origin] {
			s.logger.WithField("origin", origin).Debugln("rejected logout state request from disallowed origin")
			utils.WriteErrorPage(rw, http.StatusForbidden, string(kssobridge.EventRequestInvalid), "origin not allowed")
			return
		}
	}

	payload := &logoutRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	sess := s.resolveSession(req, payload.SessionID)

	result := s.logout.ProcessLogoutState(ctx, sess)
	var code int
	switch result {
	case logout.StateResultOK:
		code = http.StatusOK
	case logout.StateResultServiceUnavailable:
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusBadRequest
	}

	utils.WriteJSON(rw, code, &logoutStateResponse{State: string(result)}, "")
}

func (s *Server) handleLogoutForce(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	metricLogouts.WithLabelValues("force").Inc()

	payload := &logoutRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	sess := s.resolveSession(req, payload.SessionID)
	t := s.resolveTGT(req, sess)

	outcome, err := s.logout.ProcessForceLogout(ctx, sess, t)
	if err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	s.finishLogout(rw, outcome)
}

func (s *Server) handleLogoutResume(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	metricLogouts.WithLabelValues("resume").Inc()

	payload := &logoutRequest{}
	if err := decodeForm(req, payload); err != nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	var sess *session.Session
	if payload.RelayState != "" && s.stateToken != nil {
		sessionID, err := s.stateToken.Validate(payload.RelayState)
		if err != nil {
			s.logger.WithError(err).Debugln("invalid logout relay state")
		} else {
			sess = s.retrieveSession(req, sessionID)
		}
	}
	if sess == nil {
		sess = s.resolveSession(req, payload.SessionID)
	}
	if sess == nil {
		utils.WriteErrorPage(rw, http.StatusBadRequest, string(kssobridge.EventRequestInvalid), "no session to resume")
		return
	}

	t := s.resolveTGT(req, sess)

	outcome, err := s.logout.FinishFederatedLogout(ctx, req, sess, t)
	if err != nil {
		s.writeError(rw, req, sess, err)
		return
	}

	s.finishLogout(rw, outcome)
}

func (s *Server) finishLogout(rw http.ResponseWriter, outcome *logout.Outcome) {
	switch outcome.Kind {
	case logout.OutcomeConfirm:
		s.writeConfirmPage(rw)
	case logout.OutcomeFederatedRedirect:
		utils.WriteRedirect(rw, http.StatusFound, outcome.RedirectURI, nil, false)
	case logout.OutcomeInProgress:
		s.writeInProgressPage(rw)
	default:
		s.removeTGTCookie(rw)
		s.removeSessionCookie(rw)
		if outcome.RedirectURI != nil {
			utils.WriteRedirect(rw, http.StatusFound, outcome.RedirectURI, nil, false)
			return
		}
		s.writeLoggedOutPage(rw)
	}
}

// resolveSession loads the request's session, preferring the trusted session
// cookie over the untrusted sid request parameter.
func (s *Server) resolveSession(req *http.Request, untrustedSessionID string) *session.Session {
	sessionID := s.sessionIDFromCookie(req)
	if sessionID == "" {
		sessionID = untrustedSessionID
	}
	if sessionID == "" {
		return nil
	}

	return s.retrieveSession(req, sessionID)
}

func (s *Server) retrieveSession(req *http.Request, sessionID string) *session.Session {
	sess, err := s.sso.Sessions().Retrieve(req.Context(), sessionID)
	if err != nil {
		if err != storage.ErrNotFound {
			s.logger.WithError(err).Warnln("failed to retrieve session")
		}
		return nil
	}

	return sess
}

// resolveTGT loads the TGT referenced by the TGT cookie, falling back to the
// TGT recorded on the provided session.
func (s *Server) resolveTGT(req *http.Request, sess *session.Session) *tgt.TGT {
	tgtID := s.tgtIDFromCookie(req)
	if tgtID == "" && sess != nil {
		tgtID = sess.TGTID()
	}
	if tgtID == "" {
		return nil
	}

	t, err := s.sso.TGTs().Retrieve(req.Context(), tgtID)
	if err != nil {
		if err != storage.ErrNotFound {
			s.logger.WithError(err).Warnln("failed to retrieve tgt")
		}
		return nil
	}

	return t
}

func (s *Server) writeError(rw http.ResponseWriter, req *http.Request, sess *session.Session, err error) {
	if userErr, ok := err.(*sso.UserError); ok {
		utils.WriteErrorPage(rw, http.StatusBadRequest, userErr.Error(), userErr.Description())
		return
	}

	// A session which hit an unrecoverable error must not stay resumable.
	if sess != nil && sess.ID() != "" {
		sess.SetExpires(time.Now())
		if persistErr := s.sso.Sessions().Persist(req.Context(), sess); persistErr != nil {
			s.logger.WithError(persistErr).Warnln("failed to expire session after error")
		}
	}

	s.logger.WithFields(utils.ErrorAsFields(err)).Errorln("request failed")
	utils.WriteErrorPage(rw, http.StatusInternalServerError, string(kssobridge.EventInternalError), "")
}

func (s *Server) writeConfirmPage(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, `<!DOCTYPE html><html><head><title>Sign out</title></head><body><h1>Sign out everywhere?</h1><p>Other applications are still signed in with this session.</p><form method="post"><input type="hidden" name="confirm" value="1"/><button type="submit">Sign out</button></form></body></html>`)
}

func (s *Server) writeInProgressPage(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Header().Set("Refresh", "2")
	rw.WriteHeader(http.StatusAccepted)
	fmt.Fprint(rw, `<!DOCTYPE html><html><head><title>Signing out</title></head><body><h1>Signing out ...</h1><p>Please wait while your applications are being signed out.</p></body></html>`)
}

func (s *Server) writeLoggedOutPage(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, `<!DOCTYPE html><html><head><title>Signed out</title></head><body><h1>You have been signed out.</h1></body></html>`)
}
