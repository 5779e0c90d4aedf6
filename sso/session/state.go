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
)

// State is the processing state of an authentication session. Transitions
// between states are monotonic, a session never moves back to an earlier
// phase.
type State int

// Session states in the order the authentication phases run them.
const (
	StateCreated State = iota

	StatePreAuthZInProgress
	StatePreAuthZOK
	StatePreAuthZFailed

	StateAuthNSelectionInProgress
	StateAuthNSelectionOK
	StateAuthNSelectionFailed

	StateAuthNInProgress
	StateAuthNOK
	StateAuthNFailed
	StateAuthNNotSupported

	StatePostAuthZInProgress
	StatePostAuthZOK
	StatePostAuthZFailed

	StateUserLogoutInProgress
	StateUserLogoutSuccess
	StateUserLogoutFailed
	StateUserLogoutPartial
	StateUserCancelled
)

var stateNames = map[State]string{
	StateCreated: "SESSION_CREATED",

	StatePreAuthZInProgress: "PRE_AUTHZ_IN_PROGRESS",
	StatePreAuthZOK:         "PRE_AUTHZ_OK",
	StatePreAuthZFailed:     "PRE_AUTHZ_FAILED",

	StateAuthNSelectionInProgress: "AUTHN_SELECTION_IN_PROGRESS",
	StateAuthNSelectionOK:         "AUTHN_SELECTION_OK",
	StateAuthNSelectionFailed:     "AUTHN_SELECTION_FAILED",

	StateAuthNInProgress:   "AUTHN_IN_PROGRESS",
	StateAuthNOK:           "AUTHN_OK",
	StateAuthNFailed:       "AUTHN_FAILED",
	StateAuthNNotSupported: "AUTHN_NOT_SUPPORTED",

	StatePostAuthZInProgress: "POST_AUTHZ_IN_PROGRESS",
	StatePostAuthZOK:         "POST_AUTHZ_OK",
	StatePostAuthZFailed:     "POST_AUTHZ_FAILED",

	StateUserLogoutInProgress: "USER_LOGOUT_IN_PROGRESS",
	StateUserLogoutSuccess:    "USER_LOGOUT_SUCCESS",
	StateUserLogoutFailed:     "USER_LOGOUT_FAILED",
	StateUserLogoutPartial:    "USER_LOGOUT_PARTIAL",
	StateUserCancelled:        "USER_CANCELLED",
}

// String implements the Stringer interface.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SESSION_STATE_%d", int(s))
}

// transitions holds the allowed state transitions of the authentication
// phases. Logout states are handled separately, they are reachable from any
// non-logout state.
var transitions = map[State][]State{
	StateCreated: {StatePreAuthZInProgress},

	StatePreAuthZInProgress: {StatePreAuthZOK, StatePreAuthZFailed},
	StatePreAuthZOK:         {StateAuthNSelectionInProgress},

	StateAuthNSelectionInProgress: {StateAuthNSelectionOK, StateAuthNSelectionFailed},
	StateAuthNSelectionOK:         {StateAuthNInProgress},

	StateAuthNInProgress: {StateAuthNOK, StateAuthNFailed, StateAuthNNotSupported},
	StateAuthNOK:         {StatePostAuthZInProgress},

	StatePostAuthZInProgress: {StatePostAuthZOK, StatePostAuthZFailed},
}

// IsLogout returns true when the accociated state belongs to logout
// processing.
func (s State) IsLogout() bool {
	switch s {
	case StateUserLogoutInProgress, StateUserLogoutSuccess, StateUserLogoutFailed, StateUserLogoutPartial, StateUserCancelled:
		return true
	}
	return false
}

// IsTerminalLogout returns true when the accociated state ends logout
// processing.
func (s State) IsTerminalLogout() bool {
	return s.IsLogout() && s != StateUserLogoutInProgress
}

// CanTransition returns true when a session in the accociated state is
// allowed to move to the provided next state.
func (s State) CanTransition(next State) bool {
	if next.IsLogout() {
		if s.IsTerminalLogout() {
			// Logout outcomes are terminal.
			return false
		}
		if s == StateUserLogoutInProgress {
			// Re-entering in-progress logout is allowed, retried requests
			// must not fail here.
			return true
		}
		return true
	}
	if s.IsLogout() {
		return false
	}

	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
