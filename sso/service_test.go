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
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/requestors"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage/managers"
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

func newTestService(ctx context.Context, t *testing.T) *Service {
	authnRegistry, err := authentication.NewRegistry("", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	pwd := &authentication.Method{ID: "pwd", Enabled: true}
	otp := &authentication.Method{ID: "otp", Enabled: true}
	ephemeral := &authentication.Method{ID: "ephemeral", Enabled: true, DisableSSO: true}
	for _, method := range []*authentication.Method{pwd, otp, ephemeral} {
		if registerErr := authnRegistry.RegisterMethod(method); registerErr != nil {
			t.Fatal(registerErr)
		}
	}
	for _, profile := range []*authentication.Profile{
		authentication.NewProfile("default", true, []*authentication.Method{pwd}),
		authentication.NewProfile("strong", true, []*authentication.Method{pwd, otp}),
		authentication.NewProfile("mixed", true, []*authentication.Method{pwd, ephemeral}),
	} {
		if registerErr := authnRegistry.RegisterProfile(profile); registerErr != nil {
			t.Fatal(registerErr)
		}
	}

	requestorRegistry, err := requestors.NewRegistry("", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	for _, pool := range []*requestors.PoolRegistration{
		{ID: "apps", RequiredProfiles: []string{"default"}},
		{ID: "admin", RequiredProfiles: []string{"strong"}},
		{ID: "mixed", RequiredProfiles: []string{"mixed"}},
	} {
		if registerErr := requestorRegistry.RegisterPool(pool); registerErr != nil {
			t.Fatal(registerErr)
		}
	}
	for _, requestor := range []*requestors.RequestorRegistration{
		{ID: "portal", PoolID: "apps"},
		{ID: "files", PoolID: "apps"},
		{ID: "console", PoolID: "admin"},
		{ID: "gateway", PoolID: "mixed"},
	} {
		if registerErr := requestorRegistry.Register(requestor); registerErr != nil {
			t.Fatal(registerErr)
		}
	}

	service, err := NewService(ctx, &Config{
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

// authenticate runs the full interactive flow for the provided requestor and
// returns the finished session.
func authenticate(ctx context.Context, t *testing.T, service *Service, requestorID string, profileID string, user identity.User) *session.Session {
	sess, err := service.StartSession(ctx, requestorID, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthNSelection(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err = service.SelectProfile(ctx, sess, profileID); err != nil {
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

func TestSingleSignonAcrossRequestorsOfSamePool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))
	tgtID := first.TGTID()
	if tgtID == "" {
		t.Fatal("authentication did not produce a tgt")
	}

	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	signedOn, err := service.CheckSingleSignon(ctx, second, tgtID)
	if err != nil {
		t.Fatal(err)
	}
	if !signedOn {
		t.Error("second requestor of the same pool must sign on without interaction")
	}

	ticket, err := service.TGTs().Retrieve(ctx, tgtID)
	if err != nil {
		t.Fatal(err)
	}
	ids := ticket.RequestorIDs()
	if len(ids) != 2 || ids[len(ids)-1] != "files" {
		t.Errorf("unexpected tgt requestor ids: %v", ids)
	}
}

func TestSingleSignonInsufficientForStrongerPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))

	// The admin pool requires pwd and otp, a pwd-only TGT is not enough.
	second, err := service.StartSession(ctx, "console", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	signedOn, err := service.CheckSingleSignon(ctx, second, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("weaker tgt must not satisfy a pool requiring a stronger profile")
	}
}

func TestSingleSignonStepUpSatisfiesWeakerPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "console", "strong", testUser("user1"))

	second, err := service.StartSession(ctx, "portal", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	signedOn, err := service.CheckSingleSignon(ctx, second, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if !signedOn {
		t.Error("stronger tgt must satisfy a pool requiring a weaker profile")
	}
}

func TestSingleSignonRequestedProfiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))

	second, err := service.StartSession(ctx, "files", "", []string{"strong"})
	if err != nil {
		t.Fatal(err)
	}
	signedOn, err := service.CheckSingleSignon(ctx, second, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("explicitly requested profile must be honored even when the pool is satisfied")
	}

	third, err := service.StartSession(ctx, "files", "", []string{"default"})
	if err != nil {
		t.Fatal(err)
	}
	signedOn, err = service.CheckSingleSignon(ctx, third, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if !signedOn {
		t.Error("satisfied requested profile must sign on")
	}
}

func TestSingleSignonForceAuthN(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))

	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	second.SetForceAuthN(true)
	signedOn, err := service.CheckSingleSignon(ctx, second, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("forced authentication must never use single sign-on")
	}
}

func TestSingleSignonForcedUserMismatchInvalidatesTGT(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))
	tgtID := first.TGTID()

	second, err := service.StartSession(ctx, "files", "user2", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = service.CheckSingleSignon(ctx, second, tgtID)
	if !IsUserErrorWithEvent(err, kssobridge.EventTGTUserInvalid) {
		t.Fatalf("expected tgt user invalid error, got %v", err)
	}

	// The mismatch invalidates the whole TGT.
	ticket, retrieveErr := service.TGTs().Retrieve(ctx, tgtID)
	if retrieveErr == nil && !ticket.IsExpired(time.Now()) {
		t.Error("tgt must be invalidated after a forced user mismatch")
	}
}

func TestSingleSignonDisabledMethodNeverEntersTGT(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "gateway", "mixed", testUser("user1"))

	ticket, err := service.TGTs().Retrieve(ctx, first.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if ticket.AuthenticationProfile().Contains("ephemeral") {
		t.Error("methods with disabled single sign-on must not be recorded on the tgt")
	}
	if !ticket.AuthenticationProfile().Contains("pwd") {
		t.Error("regular methods must be recorded on the tgt")
	}

	// The skip stays visible on the session.
	if _, ok := first.Attribute(AttributeDisabledSSOMethods); !ok {
		t.Error("session must record the skipped methods")
	}
}

func TestMatchShadowIDPFailsClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	first := authenticate(ctx, t, service, "portal", "default", testUser("user1"))
	tgtID := first.TGTID()

	// A session carrying an alias unknown to the TGT must not sign on.
	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	second.SetAttribute(AttributeShadowIDPAlias, "corp")
	signedOn, err := service.CheckSingleSignon(ctx, second, tgtID)
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("unknown shadow idp alias must fail closed")
	}
}

func TestMatchShadowIDPWithRecordedAlias(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	// Authentication through the corp alias records the alias mapping.
	sess, err := service.StartSession(ctx, "portal", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	sess.SetAttribute(AttributeShadowIDPAlias, "corp")
	sess.SetAttribute(AttributeShadowIDPEntityID, "https://idp.corp.example/metadata")
	if err = service.BeginAuthNSelection(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err = service.SelectProfile(ctx, sess, "default"); err != nil {
		t.Fatal(err)
	}
	if err = service.BeginAuthentication(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err = service.CompleteAuthentication(ctx, sess, testUser("user1")); err != nil {
		t.Fatal(err)
	}

	second, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	second.SetAttribute(AttributeShadowIDPAlias, "corp")
	signedOn, err := service.CheckSingleSignon(ctx, second, sess.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if !signedOn {
		t.Error("recorded shadow idp alias must sign on")
	}

	// A different alias still fails.
	third, err := service.StartSession(ctx, "files", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	third.SetAttribute(AttributeShadowIDPAlias, "other")
	signedOn, err = service.CheckSingleSignon(ctx, third, sess.TGTID())
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("alias not recorded on the tgt must fail closed")
	}
}

func TestSingleSignonDisabledService(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)
	service.enabled = false

	sess := authenticate(ctx, t, service, "portal", "default", testUser("user1"))
	if sess.TGTID() != "" {
		t.Error("disabled single sign-on must not create tgts")
	}

	signedOn, err := service.CheckSingleSignon(ctx, sess, "any")
	if err != nil {
		t.Fatal(err)
	}
	if signedOn {
		t.Error("disabled single sign-on must never sign on")
	}
}

func TestStartSessionUnknownRequestor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := newTestService(ctx, t)

	_, err := service.StartSession(ctx, "unknown", "", nil)
	if !IsUserErrorWithEvent(err, kssobridge.EventRequestInvalid) {
		t.Fatalf("expected request invalid error, got %v", err)
	}
}
