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

package authorities

import (
	"context"
	"errors"
	"io/ioutil"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Registry implements the registry for registered authorities.
type Registry struct {
	mutex sync.RWMutex

	baseURI *url.URL

	defaultID   string
	authorities map[string]AuthorityRegistration
	entities    map[string]AuthorityRegistration

	logger logrus.FieldLogger
}

// NewRegistry creates a new authorities Registry with the provided parameters.
func NewRegistry(ctx context.Context, baseURI *url.URL, registrationConfFilepath string, logger logrus.FieldLogger) (*Registry, error) {
	registryData := &RegistryData{}

	if registrationConfFilepath != "" {
		logger.Debugf("parsing authorities registration conf from %v", registrationConfFilepath)
		registryFile, err := ioutil.ReadFile(registrationConfFilepath)
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(registryFile, registryData)
		if err != nil {
			return nil, err
		}
	}

	r := &Registry{
		baseURI: baseURI,

		authorities: make(map[string]AuthorityRegistration),
		entities:    make(map[string]AuthorityRegistration),

		logger: logger,
	}

	var defaultAuthority AuthorityRegistration
	for _, registrationData := range registryData.Authorities {
		authority, registerErr := NewAuthorityRegistration(r, registrationData)
		fields := logrus.Fields{
			"id":             registrationData.ID,
			"authority_type": registrationData.AuthorityType,
			"entity_id":      registrationData.EntityID,
			"insecure":       registrationData.Insecure,
			"trusted":        registrationData.Trusted,
			"default":        registrationData.Default,
			"alias_required": registrationData.IdentityAliasRequired,
		}

		if registerErr == nil {
			registerErr = authority.Validate()
		}
		if registerErr == nil {
			registerErr = r.Register(authority)
		}
		if registerErr != nil {
			logger.WithError(registerErr).WithFields(fields).Warnln("skipped registration of invalid authority entry")
			continue
		}

		if registrationData.Default || defaultAuthority == nil {
			if defaultAuthority == nil || registrationData.Default {
				defaultAuthority = authority
				r.defaultID = authority.ID()
			} else {
				logger.Warnln("ignored default authority flag since already have a default")
			}
		}

		if initializeErr := authority.Initialize(ctx, r); initializeErr != nil {
			logger.WithError(initializeErr).WithFields(fields).Warnln("failed to initialize authority")
			continue
		}

		logger.WithFields(fields).Debugln("registered authority")
	}

	return r, nil
}

// Register validates the provided authority registration and adds the
// authority to the accociated registry if valid. Returns error otherwise.
func (r *Registry) Register(authority AuthorityRegistration) error {
	if authority.ID() == "" {
		return errors.New("no authority id")
	}
	if authority.EntityID() == "" {
		return errors.New("no authority entity_id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.authorities[authority.ID()]; ok {
		return errors.New("duplicate authority id")
	}
	if _, ok := r.entities[authority.EntityID()]; ok {
		return errors.New("duplicate authority entity_id")
	}
	r.authorities[authority.ID()] = authority
	r.entities[authority.EntityID()] = authority

	return nil
}

// Lookup returns the registered authority registration for the provided ID.
func (r *Registry) Lookup(ctx context.Context, authorityID string) (AuthorityRegistration, bool) {
	if authorityID == "" {
		return nil, false
	}

	r.mutex.RLock()
	registration, ok := r.authorities[authorityID]
	r.mutex.RUnlock()

	return registration, ok
}

// LookupByEntityID returns the registered authority registration for the
// provided SAML2 entity id.
func (r *Registry) LookupByEntityID(ctx context.Context, entityID string) (AuthorityRegistration, bool) {
	if entityID == "" {
		return nil, false
	}

	r.mutex.RLock()
	registration, ok := r.entities[entityID]
	r.mutex.RUnlock()

	return registration, ok
}

// Default returns the default authority from the accociated registry if any.
func (r *Registry) Default(ctx context.Context) AuthorityRegistration {
	authority, _ := r.Lookup(ctx, r.defaultID)
	return authority
}
