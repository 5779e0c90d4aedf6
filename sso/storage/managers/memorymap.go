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

package managers

import (
	"context"
	"errors"
	"time"

	"github.com/orcaman/concurrent-map"
	"github.com/sirupsen/logrus"
	"stash.kopano.io/kgol/rndm"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/storage"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

const (
	idLength      = 32
	idMaxAttempts = 5

	sweepInterval = 30 * time.Second
)

// errIDSpaceExhausted is returned when no collision free id could be
// generated. With 32 character random ids this practically never happens.
var errIDSpaceExhausted = errors.New("unable to generate unique id")

// SessionMemoryMapManager provides an in memory session store. Its methods
// are safe to call from multiple Go routines.
type SessionMemoryMapManager struct {
	table    cmap.ConcurrentMap
	duration time.Duration

	logger logrus.FieldLogger
}

// NewSessionMemoryMapManager creates a new in memory session store with the
// provided session lifetime. A background sweep removes expired sessions
// until the provided context is done.
func NewSessionMemoryMapManager(ctx context.Context, duration time.Duration, logger logrus.FieldLogger) *SessionMemoryMapManager {
	sm := &SessionMemoryMapManager{
		table:    cmap.New(),
		duration: duration,

		logger: logger,
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed, _ := sm.RemoveExpired(ctx); removed > 0 {
					logger.WithField("count", removed).Debugln("session store removed expired sessions")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return sm
}

// Create implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) Create(ctx context.Context, requestorID string) *session.Session {
	return session.New(requestorID)
}

// Retrieve implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) Retrieve(ctx context.Context, id string) (*session.Session, error) {
	stored, found := sm.table.Get(id)
	if !found {
		return nil, storage.ErrNotFound
	}

	s := stored.(*session.Session)
	if s.IsExpired(time.Now()) {
		sm.table.Remove(id)
		return nil, storage.ErrNotFound
	}

	return s, nil
}

// Persist implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) Persist(ctx context.Context, s *session.Session) error {
	if s.IsExpired(time.Now()) && s.ID() != "" {
		sm.table.Remove(s.ID())
		return nil
	}

	if s.ID() == "" {
		id, err := uniqueID(sm.table)
		if err != nil {
			return &storage.PersistenceError{Err: err}
		}
		s.SetID(id)
	}
	s.SetExpires(time.Now().Add(sm.duration))

	sm.table.Set(s.ID(), s)
	return nil
}

// Exists implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) Exists(ctx context.Context, id string) (bool, error) {
	return sm.table.Has(id), nil
}

// Count implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) Count(ctx context.Context) (uint64, error) {
	return uint64(sm.table.Count()), nil
}

// RemoveExpired implements the storage.SessionStore interface.
func (sm *SessionMemoryMapManager) RemoveExpired(ctx context.Context) (uint64, error) {
	var expired []string
	now := time.Now()
	for entry := range sm.table.IterBuffered() {
		if entry.Val.(*session.Session).IsExpired(now) {
			expired = append(expired, entry.Key)
		}
	}
	for _, id := range expired {
		sm.table.Remove(id)
	}

	return uint64(len(expired)), nil
}

// TGTMemoryMapManager provides an in memory TGT store. Its methods are safe
// to call from multiple Go routines.
type TGTMemoryMapManager struct {
	table    cmap.ConcurrentMap
	duration time.Duration

	logger logrus.FieldLogger
}

// NewTGTMemoryMapManager creates a new in memory TGT store with the provided
// TGT lifetime. A background sweep removes expired TGTs until the provided
// context is done.
func NewTGTMemoryMapManager(ctx context.Context, duration time.Duration, logger logrus.FieldLogger) *TGTMemoryMapManager {
	tm := &TGTMemoryMapManager{
		table:    cmap.New(),
		duration: duration,

		logger: logger,
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed, _ := tm.RemoveExpired(ctx); removed > 0 {
					logger.WithField("count", removed).Debugln("tgt store removed expired tgts")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return tm
}

// Create implements the storage.TGTStore interface.
func (tm *TGTMemoryMapManager) Create(ctx context.Context, user identity.User) *tgt.TGT {
	return tgt.New(user)
}

// Retrieve implements the storage.TGTStore interface.
func (tm *TGTMemoryMapManager) Retrieve(ctx context.Context, id string) (*tgt.TGT, error) {
	stored, found := tm.table.Get(id)
	if !found {
		return nil, storage.ErrNotFound
	}

	t := stored.(*tgt.TGT)
	if t.IsExpired(time.Now()) {
		tm.table.Remove(id)
		return nil, storage.ErrNotFound
	}

	return t, nil
}

// Persist implements the storage.TGTStore interface. Persisting an expired
// TGT removes it from the store.
func (tm *TGTMemoryMapManager) Persist(ctx context.Context, t *tgt.TGT) error {
	if t.IsExpired(time.Now()) {
		if t.ID() != "" {
			tm.table.Remove(t.ID())
		}
		return nil
	}

	if t.ID() == "" {
		id, err := uniqueID(tm.table)
		if err != nil {
			return &storage.PersistenceError{Err: err}
		}
		t.SetID(id)
	}
	t.SetExpires(time.Now().Add(tm.duration))

	tm.table.Set(t.ID(), t)
	return nil
}

// Exists implements the storage.TGTStore interface.
func (tm *TGTMemoryMapManager) Exists(ctx context.Context, id string) (bool, error) {
	return tm.table.Has(id), nil
}

// Count implements the storage.TGTStore interface.
func (tm *TGTMemoryMapManager) Count(ctx context.Context) (uint64, error) {
	return uint64(tm.table.Count()), nil
}

// RemoveExpired implements the storage.TGTStore interface.
func (tm *TGTMemoryMapManager) RemoveExpired(ctx context.Context) (uint64, error) {
	var expired []string
	now := time.Now()
	for entry := range tm.table.IterBuffered() {
		if entry.Val.(*tgt.TGT).IsExpired(now) {
			expired = append(expired, entry.Key)
		}
	}
	for _, id := range expired {
		tm.table.Remove(id)
	}

	return uint64(len(expired)), nil
}

// uniqueID generates a random id not yet present in the provided table.
func uniqueID(table cmap.ConcurrentMap) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		id := rndm.GenerateRandomString(idLength)
		if !table.Has(id) {
			return id, nil
		}
	}

	return "", errIDSpaceExhausted
}
