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
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// PropertyLogoutConfirmation is the requestor and pool property which
// overrides the global logout confirmation default.
const PropertyLogoutConfirmation = "logout_confirmation"

// OutcomeKind tells the caller what to do next after a logout entry point
// returns.
type OutcomeKind int

// Logout entry point outcome kinds.
const (
	// OutcomeConfirm means a confirmation page must be shown before
	// logout continues.
	OutcomeConfirm OutcomeKind = iota
	// OutcomeFederatedRedirect means the user agent must be redirected
	// to RedirectURI to run the remote part of a federated logout.
	OutcomeFederatedRedirect
	// OutcomeInProgress means listener fan-out is still running and the
	// caller should render an in progress indicator and await polling.
	OutcomeInProgress
	// OutcomeDone means logout ended. RedirectURI points to the
	// originating requestor's profile when the logout fully succeeded
	// and such a target is known.
	OutcomeDone
)

// Outcome is the result of a logout entry point.
type Outcome struct {
	Kind        OutcomeKind
	RedirectURI *url.URL
}

// StateResult is the answer of the logout state polling side channel.
type StateResult string

// Logout state polling results.
const (
	StateResultOK                 StateResult = "OK"
	StateResultServiceUnavailable StateResult = "SERVICE_UNAVAILABLE"
	StateResultBadRequest         StateResult = "BAD_REQUEST"
)

// Config defines a logout Profile's configuration settings.
type Config struct {
	SSO *sso.Service

	// Methods are the registered federated logout methods, tried in
	// order.
	Methods []Method

	// ConfirmDefault is the global logout confirmation default, used when
	// neither the requestor nor its pool define the property.
	ConfirmDefault bool

	Logger logrus.FieldLogger
}

// Profile implements the logout entry points on top of the single sign-on
// service.
type Profile struct {
	mutex   sync.Mutex
	stopped bool

	sso     *sso.Service
	methods []Method

	confirmDefault bool

	runsMutex sync.Mutex
	runs      map[string]*State

	logger logrus.FieldLogger
}

// NewProfile creates a new logout Profile with the provided parameters.
func NewProfile(ctx context.Context, c *Config) (*Profile, error) {
	if c.SSO == nil {
		return nil, errors.New("logout profile requires a sso service")
	}

	p := &Profile{
		sso:     c.SSO,
		methods: c.Methods,

		confirmDefault: c.ConfirmDefault,

		runs: make(map[string]*State),

		logger: c.Logger,
	}

	return p, nil
}

// ProcessDefault is the initial logout entry point. Without a usable TGT it
// degrades to forced logout. Otherwise it removes the initiating requestor
// from the TGT, optionally requests confirmation and then starts either a
// federated or a local logout. The provided state value correlates a
// federated exchange across requests.
func (p *Profile) ProcessDefault(ctx context.Context, sess *session.Session, t *tgt.TGT, confirmed bool, state string) (*Outcome, error) {
	if sess == nil || t == nil || t.IsExpired(time.Now()) {
		return p.ProcessForceLogout(ctx, sess, nil)
	}

	// The initiating requestor no longer needs logging out.
	if requestorID := sess.RequestorID(); requestorID != "" {
		t.RemoveRequestorID(requestorID)
		p.removeShadowAliases(t, requestorID)
		if err := p.sso.TGTs().Persist(ctx, t); err != nil {
			return nil, sso.NewInternalError("failed to persist tgt", err)
		}
	}

	if !confirmed && len(t.RequestorIDs()) >= 1 && p.confirmationRequired(sess.RequestorID()) {
		return &Outcome{Kind: OutcomeConfirm}, nil
	}

	for _, method := range p.methods {
		if !method.CanHandle(ctx, sess, t) {
			continue
		}

		sess.SetAttribute(AttributeMethodID, method.ID())
		if err := p.sso.Sessions().Persist(ctx, sess); err != nil {
			return nil, sso.NewInternalError("failed to persist session", err)
		}

		status, uri, err := method.Logout(ctx, sess, t, state)
		if err != nil {
			p.logger.WithError(err).WithField("method", method.ID()).Warnln("federated logout failed to start")
		}
		return p.processMethodStatus(ctx, sess, t, status, uri)
	}

	return p.ProcessLocalLogout(ctx, sess, t)
}

// FinishFederatedLogout resumes an in flight federated logout exchange with
// the follow up request. A missing or inconsistent stashed method reference
// is a user facing request error.
func (p *Profile) FinishFederatedLogout(ctx context.Context, req *http.Request, sess *session.Session, t *tgt.TGT) (*Outcome, error) {
	var methodID string
	if value, ok := sess.Attribute(AttributeMethodID); ok {
		methodID, _ = value.(string)
	}
	if methodID == "" {
		return nil, sso.NewUserError(kssobridge.EventRequestInvalid, "no federated logout in flight")
	}

	var method Method
	for _, registered := range p.methods {
		if registered.ID() == methodID {
			method = registered
			break
		}
	}
	if method == nil {
		return nil, sso.NewUserError(kssobridge.EventRequestInvalid, "inconsistent federated logout method reference")
	}

	sess.DeleteAttribute(AttributeMethodID)

	status, err := method.FinishLogout(ctx, req, sess, t)
	if err != nil {
		p.logger.WithError(err).WithField("method", method.ID()).Debugln("federated logout finish reported error")
	}
	return p.processMethodStatus(ctx, sess, t, status, nil)
}

func (p *Profile) processMethodStatus(ctx context.Context, sess *session.Session, t *tgt.TGT, status Status, uri *url.URL) (*Outcome, error) {
	switch status {
	case StatusInProgress:
		return &Outcome{Kind: OutcomeFederatedRedirect, RedirectURI: uri}, nil
	case StatusLoggedOut:
		sess.DeleteAttribute(AttributeMethodID)
		return p.ProcessLocalLogout(ctx, sess, t)
	default:
		sess.DeleteAttribute(AttributeMethodID)
		return p.ProcessForceLogout(ctx, sess, t)
	}
}

// ProcessLocalLogout marks the session's logout in progress and fans out the
// on remove TGT event to every registered listener concurrently. Re-entry
// while a fan-out run is still active never spawns a second set of workers.
func (p *Profile) ProcessLocalLogout(ctx context.Context, sess *session.Session, t *tgt.TGT) (*Outcome, error) {
	if sess.State() == session.StateUserLogoutInProgress {
		if err := p.sso.Sessions().Persist(ctx, sess); err != nil {
			p.logger.WithError(err).Warnln("failed to persist session")
		}

		p.runsMutex.Lock()
		run, active := p.runs[sess.ID()]
		p.runsMutex.Unlock()
		if active && !run.Done() {
			return &Outcome{Kind: OutcomeInProgress}, nil
		}

		return p.ProcessForceLogout(ctx, sess, t)
	}

	if err := sess.UpdateState(session.StateUserLogoutInProgress); err != nil {
		return nil, sso.NewInternalError("session state", err)
	}

	if t == nil {
		tgtID := sess.TGTID()
		if tgtID == "" {
			return p.ProcessForceLogout(ctx, sess, nil)
		}
		var err error
		t, err = p.sso.TGTs().Retrieve(ctx, tgtID)
		if err != nil {
			if err == storage.ErrNotFound {
				return p.ProcessForceLogout(ctx, sess, nil)
			}
			return nil, sso.NewInternalError("session tgt cannot be retrieved", err)
		}
	}

	// The ticket is gone once logout is underway, whatever the listeners
	// report.
	t.Expire()
	if err := p.sso.TGTs().Persist(ctx, t); err != nil {
		p.logger.WithError(err).Warnln("failed to persist expired tgt")
	}

	listeners := p.sso.TGTEventListeners()
	if len(listeners) == 0 {
		sess.SetAttribute(AttributeResults, []Result{})
		if err := sess.UpdateState(session.StateUserLogoutSuccess); err != nil {
			return nil, sso.NewInternalError("session state", err)
		}
		if err := p.sso.Sessions().Persist(ctx, sess); err != nil {
			return nil, sso.NewInternalError("failed to persist session", err)
		}
		return p.ProcessForceLogout(ctx, sess, t)
	}

	listenerIDs := make([]string, 0, len(listeners))
	for _, listener := range listeners {
		listenerIDs = append(listenerIDs, listener.ID())
	}

	sessionID := sess.ID()
	run := NewState(sessionID, listenerIDs, func(outcome kssobridge.Event, results []Result) {
		p.completeRun(sessionID, outcome, results)
	})

	p.runsMutex.Lock()
	p.runs[sessionID] = run
	p.runsMutex.Unlock()

	sess.SetAttribute(AttributeRunID, run.ID())
	if err := p.sso.Sessions().Persist(ctx, sess); err != nil {
		return nil, sso.NewInternalError("failed to persist session", err)
	}

	run.Dispatch(ctx, listeners, t, p.logger)

	// Listeners might all have finished already before control returns
	// here. In that case skip the in progress indicator.
	if run.Done() {
		return p.ProcessForceLogout(ctx, sess, t)
	}

	return &Outcome{Kind: OutcomeInProgress}, nil
}

// completeRun persists the aggregated fan-out outcome onto the session. It
// runs on the goroutine of whichever listener reports last and must never
// propagate errors to it.
func (p *Profile) completeRun(sessionID string, outcome kssobridge.Event, results []Result) {
	p.runsMutex.Lock()
	delete(p.runs, sessionID)
	p.runsMutex.Unlock()

	ctx := context.Background()
	sess, err := p.sso.Sessions().Retrieve(ctx, sessionID)
	if err != nil {
		p.logger.WithError(err).WithField("session", sessionID).Warnln("failed to load session for logout aggregation")
		return
	}

	sess.SetAttribute(AttributeResults, results)
	sess.DeleteAttribute(AttributeRunID)

	next := session.StateUserLogoutSuccess
	if outcome != kssobridge.EventUserLoggedOut {
		next = session.StateUserLogoutFailed
	}
	if updateErr := sess.UpdateState(next); updateErr != nil {
		p.logger.WithError(updateErr).WithField("session", sessionID).Warnln("failed to record logout aggregation state")
	}

	if persistErr := p.sso.Sessions().Persist(ctx, sess); persistErr != nil {
		p.logger.WithError(persistErr).WithField("session", sessionID).Warnln("failed to persist session for logout aggregation")
	}
}

// ProcessForceLogout is the unconditional cleanup path. It expires and
// persists the TGT when one can be resolved and works cookie only when no
// session is present. Session state bookkeeping happens only with a session
// in hand.
func (p *Profile) ProcessForceLogout(ctx context.Context, sess *session.Session, t *tgt.TGT) (*Outcome, error) {
	if t == nil && sess != nil && sess.TGTID() != "" {
		stored, err := p.sso.TGTs().Retrieve(ctx, sess.TGTID())
		if err == nil {
			t = stored
		} else if err != storage.ErrNotFound {
			p.logger.WithError(err).Warnln("failed to retrieve tgt for forced logout")
		}
	}

	if t != nil {
		t.Expire()
		if err := p.sso.TGTs().Persist(ctx, t); err != nil {
			p.logger.WithError(err).Warnln("failed to persist expired tgt")
		} else {
			p.logger.WithField("tgt", t.ID()).Debugln("tgt expired by forced logout")
		}
	}

	outcome := &Outcome{Kind: OutcomeDone}
	if sess == nil {
		return outcome, nil
	}

	if !sess.State().IsTerminalLogout() {
		results := p.resultsSnapshot(sess)
		next := session.StateUserLogoutFailed
		if isPartial(results) {
			next = session.StateUserLogoutPartial
		}
		sess.SetAttribute(AttributeResults, results)
		if err := sess.UpdateState(next); err != nil {
			p.logger.WithError(err).Warnln("failed to record forced logout state")
		}
		if err := p.sso.Sessions().Persist(ctx, sess); err != nil {
			p.logger.WithError(err).Warnln("failed to persist session")
		}
	}

	if sess.State() == session.StateUserLogoutSuccess {
		if requestor, ok := p.sso.Requestors().Get(sess.RequestorID()); ok && requestor.ProfileURI != "" {
			if uri, err := url.Parse(requestor.ProfileURI); err == nil {
				outcome.RedirectURI = uri
			}
		}
	}

	return outcome, nil
}

// ProcessLogoutState is the polling side channel for logout completion.
func (p *Profile) ProcessLogoutState(ctx context.Context, sess *session.Session) StateResult {
	if sess == nil {
		return StateResultBadRequest
	}

	if sess.State().IsTerminalLogout() {
		return StateResultOK
	}

	return StateResultServiceUnavailable
}

// resultsSnapshot returns the per listener results of the session's active
// fan-out run, falling back to the results already recorded on the session.
func (p *Profile) resultsSnapshot(sess *session.Session) []Result {
	p.runsMutex.Lock()
	run, active := p.runs[sess.ID()]
	p.runsMutex.Unlock()
	if active {
		return run.Results()
	}

	if value, ok := sess.Attribute(AttributeResults); ok {
		if results, isResults := value.([]Result); isResults {
			return results
		}
	}

	return nil
}

func isPartial(results []Result) bool {
	succeeded := false
	unfinished := false
	for _, result := range results {
		switch result.Event {
		case kssobridge.EventUserLoggedOut:
			succeeded = true
		default:
			unfinished = true
		}
	}

	return succeeded && unfinished
}

// confirmationRequired resolves the logout confirmation policy for the
// provided requestor, requestor property first, then pool property, then
// the global default.
func (p *Profile) confirmationRequired(requestorID string) bool {
	requestor, ok := p.sso.Requestors().Get(requestorID)
	if ok {
		if value, withProperty := requestor.Property(PropertyLogoutConfirmation); withProperty {
			if confirm, err := strconv.ParseBool(value); err == nil {
				return confirm
			}
		}
	}

	if pool := p.sso.Requestors().PoolForRequestor(requestorID); pool != nil {
		if value, withProperty := pool.Property(PropertyLogoutConfirmation); withProperty {
			if confirm, err := strconv.ParseBool(value); err == nil {
				return confirm
			}
		}
	}

	return p.confirmDefault
}

// removeShadowAliases drops the shadow IDP aliases the provided requestor
// signed on through from the TGT, in both the alias mapping and the
// requestor bookkeeping.
func (p *Profile) removeShadowAliases(t *tgt.TGT, requestorID string) {
	ownersValue, ok := t.Attribute(sso.AttributeShadowIDPRequestors)
	if !ok {
		return
	}
	owners, isMap := ownersValue.(map[string]string)
	if !isMap {
		return
	}

	var shadowIDPs map[string]string
	if value, withIDPs := t.Attribute(sso.AttributeShadowIDPs); withIDPs {
		shadowIDPs, _ = value.(map[string]string)
	}

	for alias, ownerID := range owners {
		if ownerID != requestorID {
			continue
		}
		delete(owners, alias)
		if shadowIDPs != nil {
			delete(shadowIDPs, alias)
		}
	}
	t.SetAttribute(sso.AttributeShadowIDPRequestors, owners)
	if shadowIDPs != nil {
		t.SetAttribute(sso.AttributeShadowIDPs, shadowIDPs)
	}
}

// Restart applies the provided configuration to the accociated Profile,
// synchronized against Stop.
func (p *Profile) Restart(ctx context.Context, c *Config) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if c.SSO == nil {
		return errors.New("logout profile requires a sso service")
	}

	p.sso = c.SSO
	p.methods = c.Methods
	p.confirmDefault = c.ConfirmDefault
	if c.Logger != nil {
		p.logger = c.Logger
	}
	p.stopped = false

	return nil
}

// Stop marks the accociated Profile as stopped, synchronized against
// Restart.
func (p *Profile) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stopped = true
}
