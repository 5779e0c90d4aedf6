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

package nameid

import (
	"errors"
	"fmt"

	"stash.kopano.io/kgol/rndm"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// Transient NameID length bounds.
const (
	transientDefaultLength = 32
	transientMaximumLength = 256
)

// TransientFormatter produces a fresh random NameID value on every request.
// Uniqueness across active TGTs is the caller's responsibility.
type TransientFormatter struct {
	length int
}

// NewTransientFormatter creates a TransientFormatter from the provided
// configuration.
func NewTransientFormatter(c *Config) (Formatter, error) {
	length := c.Length
	if length == 0 {
		length = transientDefaultLength
	}
	if length < 0 || length > transientMaximumLength {
		return nil, fmt.Errorf("invalid transient name id length: %d", length)
	}

	return &TransientFormatter{
		length: length,
	}, nil
}

// Format implements the Formatter interface.
func (f *TransientFormatter) Format(user identity.User, entityID string, tgtID string, sess *session.Session) (string, error) {
	if user == nil {
		return "", errors.New("no user")
	}

	return rndm.GenerateRandomString(f.length), nil
}

// Reformat implements the Formatter interface.
func (f *TransientFormatter) Reformat(user identity.User, entityID string, tgtID string, sess *session.Session) error {
	_, err := f.Format(user, entityID, tgtID, sess)
	return err
}

// IsDomainScoped implements the Formatter interface.
func (f *TransientFormatter) IsDomainScoped() bool {
	return true
}

// IsDomainUnique implements the Formatter interface.
func (f *TransientFormatter) IsDomainUnique() bool {
	return true
}

// Domain implements the Formatter interface.
func (f *TransientFormatter) Domain(user identity.User, entityID string) string {
	return entityID
}
