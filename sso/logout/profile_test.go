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
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/requestors"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage/managers"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

var testLogger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{DisableColors: true},
	Level:     logrus.DebugLevel,
}

type testUser string

func (u testUser) Subject() string {
	return string(u)
}

type testListener struct {
	id    string
	err   error
	block chan struct{}
	calls int32
}

func (l *testListener) ID() string {
	return l.id
}

func (l *testListener) ProcessTGTEvent(ctx context.Context, event tgt.EventType, t *tgt.TGT) error {
	atomic.AddInt32(&l.calls, 1)
	if l.block != nil {
		<-l.block
	}
	return l.err
}

type testMethod struct {
	id        string
	canHandle bool
	status    Status
	uri       *url.URL
	finish    Status
}

func (m *testMethod) ID() string {
	return m.id
}

func (m *testMethod) CanHandle(ctx context.Context, sess *session.Session, t *tgt.TGT) bool {
	return m.canHandle
}

func (m *testMethod) Logout(ctx context.Context, sess *session.Session, t *tgt.TGT, state string) (Status, *url.URL, error) {
	return m.status, m.uri, nil
}

func (m *testMethod) FinishLogout(ctx context.Context, req *http.Request, sess *session.Session, t *tgt.TGT) (Status, error) {
	return m.finish, nil
}

func newTestService(ctx context.Context, t *testing.T) *sso.Service {
	authnRegistry, err := authentication.NewRegistry("", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	pwd := &authentication.Method{ID: "pwd", Enabled: true}
	if err = authnRegistry.RegisterMethod(pwd); err != nil {
		t.Fatal(err)
	}
	if err = authnRegistry.RegisterProfile(authentication.NewProfile("default", true, []*authentication.Method{pwd})); err != nil {
		t.Fatal(err)
	}

	requestorRegistry, err := requestors.NewRegistry("", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	for _, pool := range []*requestors.PoolRegistration{
		{ID: "apps", RequiredProfiles: []string{"default"}},
		{ID: "careful", RequiredProfiles: []string{"default"}, Properties: map[string]string{PropertyLogoutConfirmation: "true"}},
	} {
		if registerErr := requestorRegistry.RegisterPool(pool); registerErr != nil {
			t.Fatal(registerErr)
		}
	}
	for _, requestor := range []*requestors.RequestorRegistration{
		{ID: "portal", PoolID: "apps", ProfileURI: "https://portal.kopano.local/profile"},
		{ID: "files", PoolID: "apps"},
		{ID: "quiet", PoolID: "apps", Properties: map[string]string{PropertyLogoutConfirmation: "false"}},
		{ID: "audit", PoolID: "careful"},
	} {
		if registerErr := requestorRegistry.Register(requestor); registerErr != nil {
			t.Fatal(registerErr)
		}
	}

	service, err := sso.NewService(ctx, &sso.Config{
		Enabled: true,

		SessionStore: managers.NewSessionMemoryMapManager(ctx, time.Minute, testLogger),
		TGTStore:     managers.NewTGTMemoryMapManager(ctx, time.Hour, testLogger),

		Authentication: authnRegistry,
		Requestors:     requestorRegistry,

		Logger: testLogger,
	})
	if err != nil {
		t.Fatal(err)
	}

	return service
}

func newTestProfile(ctx context.Context, t *testing.T, service *sso.Service, methods []Method, confirmDefault bool) *Profile {
	p, err := NewProfile(ctx, &Config{
		SSO:            service,
		Methods:        methods,
		ConfirmDefault: confirmDefault,
		Logger:         testLogger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// authenticate runs the full interactive flow for the provided requestor and
// returns the finished session.
func authenticate(ctx context.Context, t *testing.T, service *sso.Service, requestorID string, user identity.User) *session.Session {
	sess, err := service.StartSession(ctx, requestorID, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthNSelection(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err = service.SelectProfile(ctx, sess, "default"); err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthentication(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err = service.CompleteAuthentication(ctx, sess, user); err != nil {
		t.Fatal(err)
	}
	return sess
}

// waitForTerminalLogout polls the session store until the session reached a
// terminal logout state.
func waitForTerminalLogout(ctx context.Context, t *testing.T, service *sso.Service, sessionID string) *session.Session {
	deadline := time.Now().Add(5 * time.Second)
	for {
		sess, err := service.Sessions().Retrieve(ctx, sessionID)
		if err != nil {
			t.Fatal(err)
		}
		if sess.State().IsTerminalLogout() {
			return sess
		}
		if time.Now().After(deadline) {
			t.Fatalf("logout never reached a terminal state, stuck in %v", sess.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProcessLocalLogoutAllListenersSucceed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	service.RegisterTGTEventListener(&testListener{id: "a"})
	service.RegisterTGTEventListener(&testListener{id: "b"})

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))
	tgtID := sess.TGTID()

	if _, err := p.ProcessLocalLogout(ctx, sess, nil); err != nil {
		t.Fatal(err)
	}

	done := waitForTerminalLogout(ctx, t, service, sess.ID())
	if done.State() != session.StateUserLogoutSuccess {
		t.Errorf("unexpected final state: %v", done.State())
	}

	value, ok := done.Attribute(AttributeResults)
	if !ok {
		t.Fatal("session must record the listener results")
	}
	results := value.([]Result)
	if len(results) != 2 {
		t.Fatalf("unexpected result count: %d", len(results))
	}
	for _, result := range results {
		if result.Event != kssobridge.EventUserLoggedOut {
			t.Errorf("listener %v reported %v", result.ListenerID, result.Event)
		}
	}

	// The ticket is gone no matter what the listeners reported.
	if ticket, err := service.TGTs().Retrieve(ctx, tgtID); err == nil && !ticket.IsExpired(time.Now()) {
		t.Error("tgt must be expired once local logout started")
	}
}

func TestProcessLocalLogoutListenerFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	service.RegisterTGTEventListener(&testListener{id: "a"})
	service.RegisterTGTEventListener(&testListener{id: "b", err: &tgt.ListenerError{Code: kssobridge.EventUserLogoutFailed}})

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))

	if _, err := p.ProcessLocalLogout(ctx, sess, nil); err != nil {
		t.Fatal(err)
	}

	done := waitForTerminalLogout(ctx, t, service, sess.ID())
	if done.State() != session.StateUserLogoutFailed {
		t.Errorf("unexpected final state: %v", done.State())
	}

	value, _ := done.Attribute(AttributeResults)
	for _, result := range value.([]Result) {
		switch result.ListenerID {
		case "a":
			if result.Event != kssobridge.EventUserLoggedOut {
				t.Errorf("listener a reported %v", result.Event)
			}
		case "b":
			if result.Event != kssobridge.EventUserLogoutFailed {
				t.Errorf("listener b reported %v", result.Event)
			}
		}
	}
}

func TestProcessLocalLogoutReEntryWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	block := make(chan struct{})
	listener := &testListener{id: "slow", block: block}
	service.RegisterTGTEventListener(listener)

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))

	outcome, err := p.ProcessLocalLogout(ctx, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeInProgress {
		t.Fatalf("unexpected outcome kind: %v", outcome.Kind)
	}

	// Re-entry during the active run must not spawn a second worker set.
	outcome, err = p.ProcessLocalLogout(ctx, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeInProgress {
		t.Fatalf("unexpected re-entry outcome kind: %v", outcome.Kind)
	}

	close(block)
	waitForTerminalLogout(ctx, t, service, sess.ID())

	if calls := atomic.LoadInt32(&listener.calls); calls != 1 {
		t.Errorf("listener must run exactly once, ran %d times", calls)
	}
}

func TestProcessLocalLogoutWithoutListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))

	outcome, err := p.ProcessLocalLogout(ctx, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeDone {
		t.Fatalf("unexpected outcome kind: %v", outcome.Kind)
	}
	if sess.State() != session.StateUserLogoutSuccess {
		t.Errorf("unexpected final state: %v", sess.State())
	}
	if outcome.RedirectURI == nil || outcome.RedirectURI.String() != "https://portal.kopano.local/profile" {
		t.Errorf("successful logout must redirect to the requestor profile, got %v", outcome.RedirectURI)
	}
}

func TestProcessDefaultWithoutSessionDegradesToForce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, true)

	outcome, err := p.ProcessDefault(ctx, nil, nil, false, "")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeDone {
		t.Errorf("unexpected outcome kind: %v", outcome.Kind)
	}
}

func TestProcessDefaultConfirmation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, true)

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))
	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = service.CheckSingleSignon(ctx, second, sess.TGTID()); err != nil {
		t.Fatal(err)
	}

	ticket, err := service.TGTs().Retrieve(ctx, sess.TGTID())
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := p.ProcessDefault(ctx, sess, ticket, false, "")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeConfirm {
		t.Fatalf("unexpected outcome kind: %v", outcome.Kind)
	}

	// The initiating requestor was already removed from the ticket.
	if ids := ticket.RequestorIDs(); len(ids) != 1 || ids[0] != "files" {
		t.Errorf("unexpected tgt requestor ids: %v", ids)
	}

	outcome, err = p.ProcessDefault(ctx, sess, ticket, true, "")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeDone {
		t.Errorf("confirmed logout must run to completion, got %v", outcome.Kind)
	}
}

func TestConfirmationPolicyResolution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	withDefault := newTestProfile(ctx, t, service, nil, true)
	if !withDefault.confirmationRequired("portal") {
		t.Error("global default must apply without requestor or pool property")
	}
	if withDefault.confirmationRequired("quiet") {
		t.Error("requestor property must override the global default")
	}

	withoutDefault := newTestProfile(ctx, t, service, nil, false)
	if withoutDefault.confirmationRequired("portal") {
		t.Error("global default must apply without requestor or pool property")
	}
	if !withoutDefault.confirmationRequired("audit") {
		t.Error("pool property must override the global default")
	}
}

func TestProcessForceLogoutPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	block := make(chan struct{})
	service.RegisterTGTEventListener(&testListener{id: "fast"})
	service.RegisterTGTEventListener(&testListener{id: "slow", block: block})

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))

	if _, err := p.ProcessLocalLogout(ctx, sess, nil); err != nil {
		t.Fatal(err)
	}

	// Wait until the fast listener reported while the slow one still hangs.
	deadline := time.Now().Add(5 * time.Second)
	for {
		results := p.resultsSnapshot(sess)
		if isPartial(results) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fast listener never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}

	outcome, err := p.ProcessForceLogout(ctx, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeDone {
		t.Errorf("unexpected outcome kind: %v", outcome.Kind)
	}
	if sess.State() != session.StateUserLogoutPartial {
		t.Errorf("mixed listener results must end partial, got %v", sess.State())
	}

	close(block)
}

func TestProcessLogoutState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	if result := p.ProcessLogoutState(ctx, nil); result != StateResultBadRequest {
		t.Errorf("missing session must answer %v, got %v", StateResultBadRequest, result)
	}

	sess := session.New("portal")
	if err := sess.UpdateState(session.StateUserLogoutInProgress); err != nil {
		t.Fatal(err)
	}
	if result := p.ProcessLogoutState(ctx, sess); result != StateResultServiceUnavailable {
		t.Errorf("running logout must answer %v, got %v", StateResultServiceUnavailable, result)
	}

	if err := sess.UpdateState(session.StateUserLogoutSuccess); err != nil {
		t.Fatal(err)
	}
	if result := p.ProcessLogoutState(ctx, sess); result != StateResultOK {
		t.Errorf("finished logout must answer %v, got %v", StateResultOK, result)
	}
}

func TestProcessDefaultFederatedMethod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	redirectURI, _ := url.Parse("https://idp.corp.example/slo")
	method := &testMethod{
		id:        "saml2test",
		canHandle: true,
		status:    StatusInProgress,
		uri:       redirectURI,
		finish:    StatusLoggedOut,
	}
	p := newTestProfile(ctx, t, service, []Method{method}, false)

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))
	ticket, err := service.TGTs().Retrieve(ctx, sess.TGTID())
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := p.ProcessDefault(ctx, sess, ticket, true, "state123")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeFederatedRedirect {
		t.Fatalf("unexpected outcome kind: %v", outcome.Kind)
	}
	if outcome.RedirectURI != redirectURI {
		t.Errorf("unexpected redirect uri: %v", outcome.RedirectURI)
	}
	if value, ok := sess.Attribute(AttributeMethodID); !ok || value != "saml2test" {
		t.Errorf("session must stash the method reference, got %v", value)
	}

	req := httptest.NewRequest(http.MethodGet, "/sso/logout/return?state=state123", nil)
	outcome, err = p.FinishFederatedLogout(ctx, req, sess, ticket)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != OutcomeDone {
		t.Errorf("unexpected outcome kind after finish: %v", outcome.Kind)
	}
	if _, ok := sess.Attribute(AttributeMethodID); ok {
		t.Error("finished exchange must drop the stashed method reference")
	}
	if sess.State() != session.StateUserLogoutSuccess {
		t.Errorf("unexpected final state: %v", sess.State())
	}
}

func TestFinishFederatedLogoutWithoutMethodInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	sess := authenticate(ctx, t, service, "portal", testUser("user1"))

	req := httptest.NewRequest(http.MethodGet, "/sso/logout/return", nil)
	_, err := p.FinishFederatedLogout(ctx, req, sess, nil)
	if !sso.IsUserErrorWithEvent(err, kssobridge.EventRequestInvalid) {
		t.Fatalf("expected request invalid error, got %v", err)
	}

	// A stashed reference to an unregistered method is equally invalid.
	sess.SetAttribute(AttributeMethodID, "vanished")
	_, err = p.FinishFederatedLogout(ctx, req, sess, nil)
	if !sso.IsUserErrorWithEvent(err, kssobridge.EventRequestInvalid) {
		t.Fatalf("expected request invalid error, got %v", err)
	}
}

func TestProcessDefaultDropsShadowAliasesOfLeavingRequestor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	p := newTestProfile(ctx, t, service, nil, false)

	// portal signs on through the corp alias.
	first, err := service.StartSession(ctx, "portal", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	first.SetAttribute(sso.AttributeShadowIDPAlias, "corp")
	first.SetAttribute(sso.AttributeShadowIDPEntityID, "https://idp.corp.example/metadata")
	if err = service.BeginAuthNSelection(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err = service.SelectProfile(ctx, first, "default"); err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthentication(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err = service.CompleteAuthentication(ctx, first, testUser("user1")); err != nil {
		t.Fatal(err)
	}
	tgtID := first.TGTID()

	// files joins the same ticket through the branch alias.
	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	second.SetAttribute(sso.AttributeShadowIDPAlias, "branch")
	second.SetAttribute(sso.AttributeShadowIDPEntityID, "https://idp.branch.example/metadata")
	second.SetTGTID(tgtID)
	if err = service.BeginAuthNSelection(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err = service.SelectProfile(ctx, second, "default"); err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthentication(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err = service.CompleteAuthentication(ctx, second, testUser("user1")); err != nil {
		t.Fatal(err)
	}

	ticket, err := service.TGTs().Retrieve(ctx, tgtID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = p.ProcessDefault(ctx, first, ticket, true, ""); err != nil {
		t.Fatal(err)
	}
	waitForTerminalLogout(ctx, t, service, first.ID())

	value, ok := ticket.Attribute(sso.AttributeShadowIDPs)
	if !ok {
		t.Fatal("ticket must keep its shadow idp bookkeeping")
	}
	mapping := value.(map[string]string)
	if _, stillThere := mapping["corp"]; stillThere {
		t.Error("alias of the leaving requestor must be dropped")
	}
	if _, kept := mapping["branch"]; !kept {
		t.Error("alias of another requestor must survive")
	}

	value, ok = ticket.Attribute(sso.AttributeShadowIDPRequestors)
	if !ok {
		t.Fatal("ticket must keep its shadow idp requestor bookkeeping")
	}
	owners := value.(map[string]string)
	if _, stillThere := owners["corp"]; stillThere {
		t.Error("requestor bookkeeping of the leaving requestor must be dropped")
	}
	if ownerID := owners["branch"]; ownerID != "files" {
		t.Errorf("unexpected owner for surviving alias: %v", ownerID)
	}
}
