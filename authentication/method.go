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

// A Method is a single way to authenticate a user, identified by its ID. A
// method is satisfied within a TGT once a user completed it successfully.
type Method struct {
	ID      string `json:"id" yaml:"id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	// DisableSSO marks methods whose successful completion must not be
	// carried over into a TGT. Such methods are re-run on every
	// authentication attempt.
	DisableSSO bool `json:"disable_sso" yaml:"disable_sso"`
}
