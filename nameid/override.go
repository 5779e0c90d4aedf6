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
	"fmt"

	blake2b "github.com/minio/blake2b-simd"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// OverrideFormatter behaves like the persistent formatter but special cases
// a single configured requestor entity, for which it returns a different
// user attribute or a deterministic hash of it instead.
type OverrideFormatter struct {
	defaultFormatter Formatter

	entityID  string
	attribute string
	salt      string
}

// NewOverrideFormatter creates an OverrideFormatter from the provided
// configuration.
func NewOverrideFormatter(c *Config) (Formatter, error) {
	if c.OverrideEntityID == "" {
		return nil, fmt.Errorf("override name id formatter requires an override entity id")
	}
	if c.OverrideAttribute == "" {
		return nil, fmt.Errorf("override name id formatter requires an override attribute")
	}

	defaultFormatter, err := NewPersistentFormatter(c)
	if err != nil {
		return nil, err
	}

	return &OverrideFormatter{
		defaultFormatter: defaultFormatter,

		entityID:  c.OverrideEntityID,
		attribute: c.OverrideAttribute,
		salt:      c.Salt,
	}, nil
}

// Format implements the Formatter interface.
func (f *OverrideFormatter) Format(user identity.User, entityID string, tgtID string, sess *session.Session) (string, error) {
	if entityID != f.entityID {
		return f.defaultFormatter.Format(user, entityID, tgtID, sess)
	}

	value, ok := userAttributeValue(user, f.attribute)
	if !ok || value == "" {
		return "", fmt.Errorf("user has no %v attribute", f.attribute)
	}

	if f.salt != "" {
		hasher := blake2b.NewMAC(64, []byte(f.salt))
		hasher.Write([]byte(value))
		value = base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
	}

	return value, nil
}

// Reformat implements the Formatter interface.
func (f *OverrideFormatter) Reformat(user identity.User, entityID string, tgtID string, sess *session.Session) error {
	_, err := f.Format(user, entityID, tgtID, sess)
	return err
}

// IsDomainScoped implements the Formatter interface.
func (f *OverrideFormatter) IsDomainScoped() bool {
	return f.defaultFormatter.IsDomainScoped()
}

// IsDomainUnique implements the Formatter interface.
func (f *OverrideFormatter) IsDomainUnique() bool {
	return f.defaultFormatter.IsDomainUnique()
}

// Domain implements the Formatter interface.
func (f *OverrideFormatter) Domain(user identity.User, entityID string) string {
	return f.defaultFormatter.Domain(user, entityID)
}
