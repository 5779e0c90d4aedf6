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

package server

import (
	"net/url"

	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/backends"
	"stash.kopano.io/kc/kssobridge/config"
	"stash.kopano.io/kc/kssobridge/encryption"
	"stash.kopano.io/kc/kssobridge/signing"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/logout"
)

// Default cookie names.
const (
	DefaultTGTCookieName     = "KSSOBRIDGE-TGT"
	DefaultSessionCookieName = "KSSOBRIDGE-SESSION"
)

// Config defines a Server's configuration settings.
type Config struct {
	Config *config.Config

	BaseURI    *url.URL
	PathPrefix string

	SSO         *sso.Service
	Logout      *logout.Profile
	Authorities *authorities.Registry
	Backend     backends.Backend

	EncryptionManager *encryption.Manager
	EncryptionSecret  []byte
	StateTokenSigner  *signing.StateTokenSigner

	TGTCookieName     string
	SessionCookieName string

	// LogoutStateAllowedOrigins are the origins allowed to poll the
	// logout state side channel cross origin.
	LogoutStateAllowedOrigins []string
}
