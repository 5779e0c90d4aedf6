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

package requestors

import (
	"errors"
	"io/ioutil"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Registry implements the registry for registered requestors and requestor
// pools.
type Registry struct {
	mutex sync.RWMutex

	requestors map[string]*RequestorRegistration
	pools      map[string]*PoolRegistration

	logger logrus.FieldLogger
}

// NewRegistry creates a new requestor Registry with the provided parameters,
// loading registrations from the provided conf file when set.
func NewRegistry(registrationConfFilepath string, logger logrus.FieldLogger) (*Registry, error) {
	registryData := &RegistryData{}

	if registrationConfFilepath != "" {
		logger.Debugf("parsing requestor registration conf from %v", registrationConfFilepath)
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
		requestors: make(map[string]*RequestorRegistration),
		pools:      make(map[string]*PoolRegistration),

		logger: logger,
	}

	for _, pool := range registryData.Pools {
		if err := r.RegisterPool(pool); err != nil {
			logger.WithError(err).WithField("pool", pool.ID).Warnln("skipped registration of invalid requestor pool entry")
			continue
		}
		logger.WithFields(logrus.Fields{
			"pool":              pool.ID,
			"required_profiles": pool.RequiredProfiles,
		}).Debugln("registered requestor pool")
	}

	for _, requestor := range registryData.Requestors {
		if err := r.Register(requestor); err != nil {
			logger.WithError(err).WithField("requestor", requestor.ID).Warnln("skipped registration of invalid requestor entry")
			continue
		}
		logger.WithFields(logrus.Fields{
			"requestor": requestor.ID,
			"pool":      requestor.PoolID,
			"trusted":   requestor.Trusted,
		}).Debugln("registered requestor")
	}

	return r, nil
}

// Register validates the provided requestor registration and adds it to the
// accociated registry if valid. Returns error otherwise.
func (r *Registry) Register(requestor *RequestorRegistration) error {
	if requestor.ID == "" {
		return errors.New("no requestor id")
	}
	if requestor.PoolID != "" {
		if _, ok := r.Pool(requestor.PoolID); !ok {
			return errors.New("requestor references unknown pool: " + requestor.PoolID)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.requestors[requestor.ID] = requestor

	return nil
}

// RegisterPool validates the provided pool registration and adds it to the
// accociated registry if valid. Returns error otherwise.
func (r *Registry) RegisterPool(pool *PoolRegistration) error {
	if pool.ID == "" {
		return errors.New("no pool id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.pools[pool.ID] = pool

	return nil
}

// Get returns the registered requestor for the provided id.
func (r *Registry) Get(requestorID string) (*RequestorRegistration, bool) {
	r.mutex.RLock()
	requestor, ok := r.requestors[requestorID]
	r.mutex.RUnlock()

	return requestor, ok
}

// Pool returns the registered pool for the provided id.
func (r *Registry) Pool(poolID string) (*PoolRegistration, bool) {
	r.mutex.RLock()
	pool, ok := r.pools[poolID]
	r.mutex.RUnlock()

	return pool, ok
}

// PoolForRequestor returns the pool the provided requestor belongs to, nil
// when the requestor is unknown or has no pool.
func (r *Registry) PoolForRequestor(requestorID string) *PoolRegistration {
	requestor, ok := r.Get(requestorID)
	if !ok || requestor.PoolID == "" {
		return nil
	}

	pool, _ := r.Pool(requestor.PoolID)
	return pool
}
