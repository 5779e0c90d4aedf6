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
	"net/http"

	"github.com/gorilla/schema"
)

var formDecoder = func() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}()

// authenticateRequest is the form payload of the authenticate endpoint.
type authenticateRequest struct {
	RequestorID string `schema:"requestor_id"`

	ForcedUserID string   `schema:"user_id"`
	ProfileIDs   []string `schema:"profile_id"`
	ProfileID    string   `schema:"profile"`

	Username string `schema:"username"`
	Password string `schema:"password"`

	IDPAlias string `schema:"i"`
}

// logoutRequest is the form payload of the logout endpoints.
type logoutRequest struct {
	SessionID string `schema:"sid"`
	Confirm   bool   `schema:"confirm"`

	RelayState string `schema:"RelayState"`
}

// saml2AcsRequest is the form payload posted by remote identity providers
// to the assertion consumer service.
type saml2AcsRequest struct {
	RelayState string `schema:"RelayState"`
}

// authenticatedRedirectParams are the query parameters appended to the
// requestor profile redirect after successful authentication.
type authenticatedRedirectParams struct {
	SessionID string `url:"sid"`
	Status    string `url:"status"`
}

// logoutStateResponse is the JSON body of the logout state side channel.
type logoutStateResponse struct {
	State string `json:"state"`
}

func decodeForm(req *http.Request, dst interface{}) error {
	if err := req.ParseForm(); err != nil {
		return err
	}

	return formDecoder.Decode(dst, req.Form)
}
