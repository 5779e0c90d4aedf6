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
	"net/http"
	"net/url"
)

// Supported authority kind string values.
const (
	AuthorityTypeSAML2 = "saml2"
)

// AuthorityRegistration is the interface for authority registration
// implementations.
type AuthorityRegistration interface {
	ID() string
	Name() string
	AuthorityType() string
	EntityID() string

	Authority() *Details

	Validate() error
	Initialize(ctx context.Context, registry *Registry) error

	IdentityClaimValue(raw interface{}) (string, error)
	SessionIndexValue(raw interface{}) string

	MakeRedirectAuthenticationRequestURL(state string) (*url.URL, map[string]interface{}, error)
	ParseStateResponse(req *http.Request, state string, extra map[string]interface{}) (interface{}, error)

	MakeRedirectLogoutRequestURL(nameID string, sessionIndex string, state string) (*url.URL, error)
	ValidateLogoutResponse(req *http.Request) error
	HasSingleLogoutService() bool

	Metadata() interface{}
}

// Details hold detail information about authorities identified by ID.
type Details struct {
	ID            string
	Name          string
	AuthorityType string

	EntityID string

	Trusted  bool
	Insecure bool

	registration AuthorityRegistration

	ready bool
}

// IsReady returns wether or not the accociated registration entry was ready
// at time of creation of the accociated details.
func (d *Details) IsReady() bool {
	return d.ready
}

// IdentityClaimValue returns the identity claim value from the provided raw
// authentication response data of the accociated authority.
func (d *Details) IdentityClaimValue(raw interface{}) (string, error) {
	return d.registration.IdentityClaimValue(raw)
}

// SessionIndexValue returns the session index carried by the provided raw
// authentication response data of the accociated authority, empty when the
// response carries none.
func (d *Details) SessionIndexValue(raw interface{}) string {
	return d.registration.SessionIndexValue(raw)
}

// MakeRedirectAuthenticationRequestURL creates a authentication request
// redirect URL bound to the accociated authority carrying the provided state.
func (d *Details) MakeRedirectAuthenticationRequestURL(state string) (*url.URL, map[string]interface{}, error) {
	return d.registration.MakeRedirectAuthenticationRequestURL(state)
}

// ParseStateResponse parses the provided authentication response request
// with the extra data recorded when the request was made.
func (d *Details) ParseStateResponse(req *http.Request, state string, extra map[string]interface{}) (interface{}, error) {
	return d.registration.ParseStateResponse(req, state, extra)
}

// MakeRedirectLogoutRequestURL creates a single logout request redirect URL
// bound to the accociated authority for the provided name id and session
// index, carrying the provided state.
func (d *Details) MakeRedirectLogoutRequestURL(nameID string, sessionIndex string, state string) (*url.URL, error) {
	return d.registration.MakeRedirectLogoutRequestURL(nameID, sessionIndex, state)
}

// ValidateLogoutResponse validates the provided single logout response
// request against the accociated authority. A nil return means the authority
// confirmed the logout.
func (d *Details) ValidateLogoutResponse(req *http.Request) error {
	return d.registration.ValidateLogoutResponse(req)
}

// HasSingleLogoutService returns true when the accociated authority announces
// a single logout endpoint in its meta data.
func (d *Details) HasSingleLogoutService() bool {
	return d.registration.HasSingleLogoutService()
}
