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

package backends

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/kssobridge/identity"
)

const dummyBackendName = "dummy"

// DummyBackend is a backend accepting logon for its configured users with
// any password. It is for development setups only and says so on startup.
type DummyBackend struct {
	mutex sync.RWMutex
	users map[string]*User

	logger logrus.FieldLogger
}

// NewDummyBackend creates a new DummyBackend with the provided users.
func NewDummyBackend(logger logrus.FieldLogger, users ...*User) *DummyBackend {
	b := &DummyBackend{
		users: make(map[string]*User),

		logger: logger,
	}
	for _, user := range users {
		b.users[user.Username()] = user
	}

	return b
}

// RunWithContext implements the Backend interface.
func (b *DummyBackend) RunWithContext(ctx context.Context) error {
	b.logger.Warnln("dummy backend enabled, logon requires no password")
	return nil
}

// Logon implements the Backend interface. Any password is accepted for a
// known username.
func (b *DummyBackend) Logon(ctx context.Context, username string, password string) (bool, identity.User, error) {
	b.mutex.RLock()
	user, ok := b.users[username]
	b.mutex.RUnlock()
	if !ok {
		return false, nil, nil
	}

	return true, user, nil
}

// ResolveUserByUsername implements the Backend interface.
func (b *DummyBackend) ResolveUserByUsername(ctx context.Context, username string) (identity.UserWithUsername, error) {
	b.mutex.RLock()
	user, ok := b.users[username]
	b.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no user: %v", username)
	}

	return user, nil
}

// Name implements the Backend interface.
func (b *DummyBackend) Name() string {
	return dummyBackendName
}
