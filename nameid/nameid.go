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

// Package nameid provides the formatter strategies which map an
// authenticated user to the SAML2 NameID value handed to a requestor.
package nameid

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// Registered formatter kind string values.
const (
	FormatterTypePersistent = "persistent"
	FormatterTypeTransient  = "transient"
	FormatterTypeAttribute  = "attribute"
	FormatterTypeOverride   = "override"
)

// A Formatter produces the NameID value for an authenticated user towards a
// specific requestor entity.
type Formatter interface {
	// Format returns the NameID value for the provided user towards the
	// provided requestor entity id.
	Format(user identity.User, entityID string, tgtID string, sess *session.Session) (string, error)
	// Reformat recomputes the NameID value for the provided user, applying
	// any side effects of the accociated formatter without returning the
	// value.
	Reformat(user identity.User, entityID string, tgtID string, sess *session.Session) error
	// IsDomainScoped returns true when values produced by the accociated
	// formatter are scoped to a requestor entity.
	IsDomainScoped() bool
	// IsDomainUnique returns true when values produced by the accociated
	// formatter must be unique within their requestor entity.
	IsDomainUnique() bool
	// Domain returns the domain of the provided user towards the provided
	// requestor entity, or the empty string when the accociated formatter
	// is not domain scoped.
	Domain(user identity.User, entityID string) string
}

// Config bundles the settings of a single formatter registration.
type Config struct {
	Attribute string `yaml:"attribute"`

	Opaque bool   `yaml:"opaque"`
	Salt   string `yaml:"salt"`

	NoEntityScope bool `yaml:"no_entity_scope"`

	Length int `yaml:"length"`

	StripAttribute bool `yaml:"strip_attribute"`

	OverrideEntityID  string `yaml:"override_entity_id"`
	OverrideAttribute string `yaml:"override_attribute"`
	OverrideProperty  string `yaml:"override_property"`

	Logger logrus.FieldLogger `yaml:"-"`
}

// FactoryFunc creates a Formatter from the provided configuration.
type FactoryFunc func(c *Config) (Formatter, error)

var (
	factoriesMutex sync.RWMutex
	factories      = make(map[string]FactoryFunc)
)

// RegisterFormatterType registers the provided factory for the provided
// formatter kind, replacing any previous registration.
func RegisterFormatterType(kind string, factory FactoryFunc) {
	factoriesMutex.Lock()
	defer factoriesMutex.Unlock()

	factories[kind] = factory
}

// NewFormatter creates the formatter of the provided kind with the provided
// configuration.
func NewFormatter(kind string, c *Config) (Formatter, error) {
	factoriesMutex.RLock()
	factory, ok := factories[kind]
	factoriesMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown name id formatter type: %v", kind)
	}

	return factory(c)
}

func init() {
	RegisterFormatterType(FormatterTypePersistent, NewPersistentFormatter)
	RegisterFormatterType(FormatterTypeTransient, NewTransientFormatter)
	RegisterFormatterType(FormatterTypeAttribute, NewAttributeFormatter)
	RegisterFormatterType(FormatterTypeOverride, NewOverrideFormatter)
}

func userAttributeValue(user identity.User, name string) (string, bool) {
	userWithAttributes, ok := user.(identity.UserWithAttributes)
	if !ok {
		return "", false
	}

	return userWithAttributes.Attribute(name)
}
