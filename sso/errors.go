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
	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/utils"
)

// UserError is an error caused by the client or its request. It carries the
// event code recorded in the event log and surfaces as a 400 class response.
type UserError struct {
	Event            kssobridge.Event
	ErrorDescription string
}

// Error implements the error interface.
func (err *UserError) Error() string {
	return string(err.Event)
}

// Description implements the utils.ErrorWithDescription interface.
func (err *UserError) Description() string {
	return err.ErrorDescription
}

// NewUserError creates a new user error with the provided event code and
// description.
func NewUserError(event kssobridge.Event, description string) utils.ErrorWithDescription {
	return &UserError{event, description}
}

// IsUserErrorWithEvent returns true when the provided error is a UserError
// carrying the provided event code.
func IsUserErrorWithEvent(err error, event kssobridge.Event) bool {
	if err == nil {
		return false
	}

	userErr, ok := err.(*UserError)
	if !ok {
		return false
	}

	return userErr.Event == event
}

// InternalError is an error caused by broken invariants or failing
// collaborators. Internal errors bubble up to the request boundary where
// they surface as 500 class responses.
type InternalError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (err *InternalError) Error() string {
	if err.Err != nil {
		return err.Reason + ": " + err.Err.Error()
	}
	return err.Reason
}

// Unwrap returns the wrapped error of the accociated internal error.
func (err *InternalError) Unwrap() error {
	return err.Err
}

// NewInternalError creates a new internal error wrapping the provided error
// with the provided reason.
func NewInternalError(reason string, err error) error {
	return &InternalError{reason, err}
}

// IsInternalError returns true when the provided error is an InternalError.
func IsInternalError(err error) bool {
	_, ok := err.(*InternalError)
	return ok
}
