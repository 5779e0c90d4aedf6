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

package storage

import (
	"context"
	"errors"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// ErrNotFound is returned by stores when no entity exists for a provided id.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps I/O failures of a store. Callers treat these as
// non-retryable per call.
type PersistenceError struct {
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return "persistence error: " + e.Err.Error()
}

// Unwrap returns the wrapped error of the accociated persistence error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SessionStore is the persistence contract for authentication sessions.
type SessionStore interface {
	// Create returns a new unsaved session for the provided requestor. The
	// session has no id until persisted.
	Create(ctx context.Context, requestorID string) *session.Session

	// Retrieve returns the session with the provided id or ErrNotFound.
	Retrieve(ctx context.Context, id string) (*session.Session, error)

	// Persist writes the provided session. A session without id gets a
	// collision free random id and an expiration assigned, an expired
	// session is deleted, otherwise the session is updated and its
	// expiration refreshed.
	Persist(ctx context.Context, s *session.Session) error

	// Exists returns true when a session with the provided id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (uint64, error)

	// RemoveExpired deletes all sessions whose expiration passed and
	// returns how many were removed.
	RemoveExpired(ctx context.Context) (uint64, error)
}

// TGTStore is the persistence contract for ticket granting tickets.
type TGTStore interface {
	// Create returns a new unsaved TGT for the provided user. The TGT has
	// no id until persisted.
	Create(ctx context.Context, user identity.User) *tgt.TGT

	// Retrieve returns the TGT with the provided id or ErrNotFound.
	Retrieve(ctx context.Context, id string) (*tgt.TGT, error)

	// Persist writes the provided TGT. A TGT without id gets a collision
	// free random id and an expiration assigned, an expired TGT is
	// deleted, otherwise the TGT is updated and its expiration refreshed.
	Persist(ctx context.Context, t *tgt.TGT) error

	// Exists returns true when a TGT with the provided id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Count returns the number of stored TGTs.
	Count(ctx context.Context) (uint64, error)

	// RemoveExpired deletes all TGTs whose expiration passed and returns
	// how many were removed.
	RemoveExpired(ctx context.Context) (uint64, error)
}
