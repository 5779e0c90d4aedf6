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

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stash.kopano.io/kc/kssobridge/backends"
)

func (bs *bootstrap) setupBackend(ctx context.Context, cfg *Config) (backends.Backend, error) {
	logger := bs.cfg.Logger

	var backend backends.Backend
	var err error
	switch bs.backendName {
	case backendNameDummy:
		backend, err = newDummyBackend(bs)
	case backendNameLDAP:
		backend, err = newLDAPBackend(bs)
	default:
		err = fmt.Errorf("unknown backend: %v", bs.backendName)
	}
	if err != nil {
		return nil, err
	}

	err = backend.RunWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start %v backend: %v", backend.Name(), err)
	}
	logger.WithField("backend", backend.Name()).Infoln("backend set up")

	return backend, nil
}

func newDummyBackend(bs *bootstrap) (backends.Backend, error) {
	logger := bs.cfg.Logger

	sub := "dummy"
	dummyBackend := backends.NewDummyBackend(logger,
		backends.NewUser(sub, sub, "", nil),
	)
	logger.WithField("sub", sub).Warnln("using dummy backend")

	return dummyBackend, nil
}

func newLDAPBackend(bs *bootstrap) (backends.Backend, error) {
	logger := bs.cfg.Logger

	var userAttributes []string
	if userAttributesString := os.Getenv("LDAP_USER_ATTRIBUTES"); userAttributesString != "" {
		userAttributes = strings.Split(userAttributesString, " ")
	}

	ldapBackend, err := backends.NewLDAPBackend(&backends.LDAPBackendSettings{
		URI:          os.Getenv("LDAP_URI"),
		BindDN:       os.Getenv("LDAP_BINDDN"),
		BindPassword: os.Getenv("LDAP_BINDPW"),

		BaseDN: os.Getenv("LDAP_BASEDN"),
		Scope:  os.Getenv("LDAP_SCOPE"),
		Filter: os.Getenv("LDAP_FILTER"),

		LoginAttribute:        os.Getenv("LDAP_LOGIN_ATTRIBUTE"),
		OrganizationAttribute: os.Getenv("LDAP_ORGANIZATION_ATTRIBUTE"),
		UserAttributes:        userAttributes,

		TLSConfig: bs.tlsClientConfig,

		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ldap backend: %v", err)
	}
	logger.Infoln("using ldap backend")

	return ldapBackend, nil
}
