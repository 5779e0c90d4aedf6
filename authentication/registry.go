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

package authentication

import (
	"errors"
	"io/ioutil"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// RegistryData is the raw data of an authentication profile registration
// conf file.
type RegistryData struct {
	Methods  []*Method              `yaml:"methods"`
	Profiles []*profileRegistration `yaml:"profiles"`
}

type profileRegistration struct {
	ID      string   `yaml:"id"`
	Enabled *bool    `yaml:"enabled"`
	Methods []string `yaml:"methods"`
}

// Registry implements the registry for registered authentication methods and
// profiles.
type Registry struct {
	mutex sync.RWMutex

	methods  map[string]*Method
	profiles map[string]*Profile

	logger logrus.FieldLogger
}

// NewRegistry creates a new authentication Registry with the provided
// parameters, loading registrations from the provided conf file when set.
func NewRegistry(registrationConfFilepath string, logger logrus.FieldLogger) (*Registry, error) {
	registryData := &RegistryData{}

	if registrationConfFilepath != "" {
		logger.Debugf("parsing authentication registration conf from %v", registrationConfFilepath)
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
		methods:  make(map[string]*Method),
		profiles: make(map[string]*Profile),

		logger: logger,
	}

	for _, method := range registryData.Methods {
		if err := r.RegisterMethod(method); err != nil {
			logger.WithError(err).WithField("method", method.ID).Warnln("skipped registration of invalid authentication method")
			continue
		}
		logger.WithFields(logrus.Fields{
			"method":      method.ID,
			"enabled":     method.Enabled,
			"disable_sso": method.DisableSSO,
		}).Debugln("registered authentication method")
	}

	for _, registration := range registryData.Profiles {
		profile, err := r.registerProfileRegistration(registration)
		if err != nil {
			logger.WithError(err).WithField("profile", registration.ID).Warnln("skipped registration of invalid authentication profile")
			continue
		}
		logger.WithFields(logrus.Fields{
			"profile": profile.ID(),
			"enabled": profile.Enabled(),
			"methods": registration.Methods,
		}).Debugln("registered authentication profile")
	}

	return r, nil
}

// RegisterMethod validates the provided method and adds it to the accociated
// registry if valid. Returns error otherwise.
func (r *Registry) RegisterMethod(method *Method) error {
	if method.ID == "" {
		return errors.New("no method id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.methods[method.ID] = method

	return nil
}

// RegisterProfile adds the provided profile to the accociated registry.
func (r *Registry) RegisterProfile(profile *Profile) error {
	if profile.ID() == "" {
		return errors.New("no profile id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.profiles[profile.ID()] = profile

	return nil
}

func (r *Registry) registerProfileRegistration(registration *profileRegistration) (*Profile, error) {
	if registration.ID == "" {
		return nil, errors.New("no profile id")
	}
	if len(registration.Methods) == 0 {
		return nil, errors.New("no profile methods")
	}

	methods := make([]*Method, 0, len(registration.Methods))
	for _, id := range registration.Methods {
		method, ok := r.Method(id)
		if !ok {
			return nil, errors.New("profile references unknown method: " + id)
		}
		methods = append(methods, method)
	}

	enabled := true
	if registration.Enabled != nil {
		enabled = *registration.Enabled
	}

	profile := NewProfile(registration.ID, enabled, methods)
	return profile, r.RegisterProfile(profile)
}

// Method returns the registered method for the provided id.
func (r *Registry) Method(id string) (*Method, bool) {
	r.mutex.RLock()
	method, ok := r.methods[id]
	r.mutex.RUnlock()

	return method, ok
}

// Profile returns the registered profile for the provided id.
func (r *Registry) Profile(id string) (*Profile, bool) {
	r.mutex.RLock()
	profile, ok := r.profiles[id]
	r.mutex.RUnlock()

	return profile, ok
}

// Profiles returns all registered profiles.
func (r *Registry) Profiles() []*Profile {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	profiles := make([]*Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profiles = append(profiles, profile)
	}
	return profiles
}
