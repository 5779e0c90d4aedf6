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
	"fmt"
)

// RegistryData is the base structure of our authority registration
// configuration file.
type RegistryData struct {
	Authorities []*authorityRegistrationData `yaml:"authorities,flow"`
}

type authorityRegistrationData struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	AuthorityType string `yaml:"authority_type"`

	EntityID string `yaml:"entity_id"`

	Trusted  bool  `yaml:"trusted"`
	Insecure bool  `yaml:"insecure"`
	Default  bool  `yaml:"default"`
	Discover *bool `yaml:"discover"`

	RawMetadataEndpoint string `yaml:"metadata_endpoint"`

	IdentityClaimName string `yaml:"identity_claim_name"`

	IdentityAliases       map[string]string `yaml:"identity_aliases,flow"`
	IdentityAliasRequired bool              `yaml:"identity_alias_required"`
}

// NewAuthorityRegistration creates the type specific authority registration
// for the provided registration data.
func NewAuthorityRegistration(registry *Registry, registrationData *authorityRegistrationData) (AuthorityRegistration, error) {
	switch registrationData.AuthorityType {
	case AuthorityTypeSAML2:
		return newSAML2AuthorityRegistration(registry, registrationData)
	}

	return nil, fmt.Errorf("unknown authority type: %v", registrationData.AuthorityType)
}
