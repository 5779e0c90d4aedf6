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

package backends

// User is the concrete user model returned by the backends in this package.
type User struct {
	subject      string
	username     string
	organization string

	attributes map[string][]string
}

// NewUser creates a new User with the provided parameters.
func NewUser(subject string, username string, organization string, attributes map[string][]string) *User {
	if attributes == nil {
		attributes = make(map[string][]string)
	}

	return &User{
		subject:      subject,
		username:     username,
		organization: organization,

		attributes: attributes,
	}
}

// Subject returns the accociated user's unique id.
func (u *User) Subject() string {
	return u.subject
}

// Username returns the accociated user's login name.
func (u *User) Username() string {
	return u.username
}

// Organization returns the entity id of the identity provider the accociated
// user originates from, the empty string for local users.
func (u *User) Organization() string {
	return u.organization
}

// SetOrganization sets the accociated user's originating identity provider.
func (u *User) SetOrganization(organization string) {
	u.organization = organization
}

// Attributes returns the accociated user's attribute set.
func (u *User) Attributes() map[string][]string {
	return u.attributes
}

// Attribute returns the first value of the provided attribute.
func (u *User) Attribute(name string) (string, bool) {
	values, ok := u.attributes[name]
	if !ok || len(values) == 0 {
		return "", false
	}

	return values[0], true
}

// DeleteAttribute removes the provided attribute from the accociated user.
func (u *User) DeleteAttribute(name string) {
	delete(u.attributes, name)
}
