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

package kssobridge

// Event is an event code as used by the event log and as outcome value of
// authentication and logout operations.
type Event string

// Events as recorded by authentication and single sign-on processing.
const (
	EventAuthNStarted      Event = "AUTHN_STARTED"
	EventAuthNSuccessful   Event = "AUTHN_SUCCESSFUL"
	EventAuthNFailed       Event = "AUTHN_FAILED"
	EventAuthNNotSupported Event = "AUTHN_NOT_SUPPORTED"

	EventAuthNProfileNotAvailable Event = "AUTHN_PROFILE_NOT_AVAILABLE"
	EventAuthNProfileDisabled     Event = "AUTHN_PROFILE_DISABLED"
	EventAuthNProfileInvalid      Event = "AUTHN_PROFILE_INVALID"

	EventTGTUserInvalid Event = "TGT_USER_INVALID"
	EventTGTExpired     Event = "TGT_EXPIRED"

	EventRequestInvalid Event = "REQUEST_INVALID"
	EventSessionInvalid Event = "SESSION_INVALID"
	EventInternalError  Event = "INTERNAL_ERROR"
)

// Events as reported by TGT event listeners and logout processing.
const (
	EventUserLoggedOut        Event = "USER_LOGGED_OUT"
	EventUserLogoutInProgress Event = "USER_LOGOUT_IN_PROGRESS"
	EventUserLogoutFailed     Event = "USER_LOGOUT_FAILED"
	EventUserLogoutPartially  Event = "USER_LOGOUT_PARTIALLY"
	EventUserCancelled        Event = "USER_CANCELLED"
)
