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

package tgt

import (
	"context"

	kssobridge "stash.kopano.io/kc/kssobridge"
)

// EventType describes a TGT lifecycle event as delivered to registered
// listeners.
type EventType int

// TGT lifecycle events.
const (
	EventOnCreate EventType = iota
	EventOnExpire
	EventOnRemove
)

// String implements the Stringer interface.
func (e EventType) String() string {
	switch e {
	case EventOnCreate:
		return "ON_CREATE"
	case EventOnExpire:
		return "ON_EXPIRE"
	case EventOnRemove:
		return "ON_REMOVE"
	}
	return "ON_UNKNOWN"
}

// A Listener receives TGT lifecycle events. Listeners are registered
// explicitly on the service owning the TGTs, during logout each listener is
// run concurrently and reports exactly one terminal result.
type Listener interface {
	// ID returns a stable identifier of the accociated listener used in
	// logout result reporting.
	ID() string

	// ProcessTGTEvent processes the provided TGT lifecycle event. A nil
	// return reports success. Errors of type *ListenerError carry a
	// specific event code, any other error is reported as internal error.
	ProcessTGTEvent(ctx context.Context, event EventType, t *TGT) error
}

// ListenerError is an error reported by a TGT event listener together with a
// specific event code.
type ListenerError struct {
	Code kssobridge.Event
	Err  error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error of the accociated listener error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// EventResult maps an error returned by a listener to its terminal event
// code.
func EventResult(err error) kssobridge.Event {
	if err == nil {
		return kssobridge.EventUserLoggedOut
	}
	if listenerErr, ok := err.(*ListenerError); ok && listenerErr.Code != "" {
		return listenerErr.Code
	}
	return kssobridge.EventInternalError
}
