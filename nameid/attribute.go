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

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// AttributeFormatter returns a configured user attribute verbatim as NameID
// value. With strip enabled the attribute is removed from the user's
// attribute set after use so it cannot leak elsewhere.
type AttributeFormatter struct {
	attribute string
	strip     bool
}

// NewAttributeFormatter creates an AttributeFormatter from the provided
// configuration.
func NewAttributeFormatter(c *Config) (Formatter, error) {
	if c.Attribute == "" {
		return nil, errors.New("attribute name id formatter requires an attribute")
	}

	return &AttributeFormatter{
		attribute: c.Attribute,
		strip:     c.StripAttribute,
	}, nil
}

// Format implements the Formatter interface.
func (f *AttributeFormatter) Format(user identity.User, entityID string, tgtID string, sess *session.Session) (string, error) {
	if user == nil {
		return "", errors.New("no user")
	}

	value, ok := userAttributeValue(user, f.attribute)
	if !ok || value == "" {
		return "", fmt.Errorf("user has no %v attribute", f.attribute)
	}

	if f.strip {
		if userWithAttributes, withAttributes := user.(identity.UserWithAttributes); withAttributes {
			userWithAttributes.DeleteAttribute(f.attribute)
		}
	}

	return value, nil
}

// Reformat implements the Formatter interface.
func (f *AttributeFormatter) Reformat(user identity.User, entityID string, tgtID string, sess *session.Session) error {
	_, err := f.Format(user, entityID, tgtID, sess)
	return err
}

// IsDomainScoped implements the Formatter interface.
func (f *AttributeFormatter) IsDomainScoped() bool {
	return false
}

// IsDomainUnique implements the Formatter interface.
func (f *AttributeFormatter) IsDomainUnique() bool {
	return false
}

// Domain implements the Formatter interface.
func (f *AttributeFormatter) Domain(user identity.User, entityID string) string {
	return ""
}
