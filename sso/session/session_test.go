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
	"testing"
	"time"

	kssobridge "stash.kopano.io/kc/kssobridge"
)

func TestSessionStateAuthenticationPhases(t *testing.T) {
	sess := New("portal")
	if sess.State() != StateCreated {
		t.Fatalf("unexpected initial state: %v", sess.State())
	}

	for _, next := range []State{
		StatePreAuthZInProgress,
		StatePreAuthZOK,
		StateAuthNSelectionInProgress,
		StateAuthNSelectionOK,
		StateAuthNInProgress,
		StateAuthNOK,
		StatePostAuthZInProgress,
		StatePostAuthZOK,
	} {
		if err := sess.UpdateState(next); err != nil {
			t.Fatalf("transition to %v failed: %v", next, err)
		}
	}
}

func TestSessionStateSkipPhaseIsRejected(t *testing.T) {
	sess := New("portal")

	if err := sess.UpdateState(StateAuthNOK); err == nil {
		t.Errorf("skipping phases must be rejected")
	}
	if err := sess.UpdateState(StatePreAuthZOK); err == nil {
		t.Errorf("skipping in-progress state must be rejected")
	}
}

func TestSessionStateLogoutFromAnywhere(t *testing.T) {
	sess := New("portal")
	if err := sess.UpdateState(StateUserLogoutInProgress); err != nil {
		t.Errorf("logout must be reachable from created state: %v", err)
	}

	// Re-entering in-progress logout is allowed.
	if err := sess.UpdateState(StateUserLogoutInProgress); err != nil {
		t.Errorf("re-entering in-progress logout must be allowed: %v", err)
	}

	if err := sess.UpdateState(StateUserLogoutSuccess); err != nil {
		t.Errorf("logout completion failed: %v", err)
	}
}

func TestSessionStateTerminalLogoutIsFinal(t *testing.T) {
	sess := New("portal")
	if err := sess.UpdateState(StateUserLogoutFailed); err != nil {
		t.Fatal(err)
	}

	if err := sess.UpdateState(StateUserLogoutSuccess); err == nil {
		t.Errorf("terminal logout states must not transition")
	}
	if err := sess.UpdateState(StatePreAuthZInProgress); err == nil {
		t.Errorf("terminal logout states must not resume authentication")
	}
}

func TestStateIsTerminalLogout(t *testing.T) {
	for state, terminal := range map[State]bool{
		StateUserLogoutInProgress: false,
		StateUserLogoutSuccess:    true,
		StateUserLogoutFailed:     true,
		StateUserLogoutPartial:    true,
		StateUserCancelled:        true,
		StateAuthNOK:              false,
	} {
		if state.IsTerminalLogout() != terminal {
			t.Errorf("IsTerminalLogout(%v) != %v", state, terminal)
		}
	}
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	sess := New("portal")

	sess.SetExpires(now.Add(time.Minute))
	if sess.IsExpired(now) {
		t.Errorf("session must not be expired before its expiration time")
	}
	if !sess.IsExpired(now.Add(2 * time.Minute)) {
		t.Errorf("session must be expired after its expiration time")
	}
}

func TestSessionAttributes(t *testing.T) {
	sess := New("portal")
	key := kssobridge.AttributeKey{Owner: "test", Name: "idp_alias"}

	if _, ok := sess.Attribute(key); ok {
		t.Errorf("unknown attribute must not be found")
	}

	sess.SetAttribute(key, "corp")
	if value, ok := sess.Attribute(key); !ok || value != "corp" {
		t.Errorf("unexpected attribute value: %v %v", value, ok)
	}

	sess.DeleteAttribute(key)
	if _, ok := sess.Attribute(key); ok {
		t.Errorf("deleted attribute must not be found")
	}
}
