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

// A RequestorRegistration holds the registration data of a relying
// application which initiates authentication against the bridge.
type RequestorRegistration struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	PoolID string `yaml:"pool" json:"pool"`

	// ProfileURI is the requestor's entry point, used as redirect target
	// after fully successful logout.
	ProfileURI string `yaml:"profile_uri" json:"profile_uri"`

	Trusted bool `yaml:"trusted" json:"trusted"`

	Properties map[string]string `yaml:"properties" json:"properties"`
}

// Property returns the value of the provided property of the accociated
// registration.
func (r *RequestorRegistration) Property(name string) (string, bool) {
	value, ok := r.Properties[name]
	return value, ok
}

// A PoolRegistration groups requestors and defines which authentication
// profiles they require.
type PoolRegistration struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// RequiredProfiles lists the ids of the authentication profiles a TGT
	// must satisfy for requestors of this pool. A TGT satisfying any one
	// of them is sufficient.
	RequiredProfiles []string `yaml:"required_profiles" json:"required_profiles"`

	Properties map[string]string `yaml:"properties" json:"properties"`
}

// Property returns the value of the provided property of the accociated
// registration.
func (p *PoolRegistration) Property(name string) (string, bool) {
	value, ok := p.Properties[name]
	return value, ok
}

// RegistryData is the raw data of a requestor registration conf file.
type RegistryData struct {
	Pools      []*PoolRegistration      `yaml:"pools"`
	Requestors []*RequestorRegistration `yaml:"requestors"`
}
