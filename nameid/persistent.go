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
	"encoding/base64"
	"errors"

	blake2b "github.com/minio/blake2b-simd"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// PersistentFormatter is the default NameID formatter. It produces a stable
// value from a configured user attribute or the raw user id, optionally
// hashed into an opaque value with a salt and optionally scoped to the
// requestor entity.
type PersistentFormatter struct {
	attribute string

	opaque bool
	salt   string

	entityScope bool
}

// NewPersistentFormatter creates a PersistentFormatter from the provided
// configuration.
func NewPersistentFormatter(c *Config) (Formatter, error) {
	return &PersistentFormatter{
		attribute: c.Attribute,

		opaque: c.Opaque && c.Salt != "",
		salt:   c.Salt,

		entityScope: !c.NoEntityScope,
	}, nil
}

// Format implements the Formatter interface.
func (f *PersistentFormatter) Format(user identity.User, entityID string, tgtID string, sess *session.Session) (string, error) {
	if user == nil {
		return "", errors.New("no user")
	}

	value := user.Subject()
	if f.attribute != "" {
		if attributeValue, ok := userAttributeValue(user, f.attribute); ok {
			value = attributeValue
		}
	}
	if value == "" {
		return "", errors.New("empty name id base value")
	}

	if f.opaque {
		hasher := blake2b.NewMAC(64, []byte(f.salt))
		hasher.Write([]byte(value))
		value = base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
	}

	if f.entityScope && entityID != "" {
		value = value + "!" + entityID
	}

	return value, nil
}

// Reformat implements the Formatter interface.
func (f *PersistentFormatter) Reformat(user identity.User, entityID string, tgtID string, sess *session.Session) error {
	_, err := f.Format(user, entityID, tgtID, sess)
	return err
}

// IsDomainScoped implements the Formatter interface.
func (f *PersistentFormatter) IsDomainScoped() bool {
	return true
}

// IsDomainUnique implements the Formatter interface.
func (f *PersistentFormatter) IsDomainUnique() bool {
	return false
}

// Domain implements the Formatter interface.
func (f *PersistentFormatter) Domain(user identity.User, entityID string) string {
	return entityID
}
