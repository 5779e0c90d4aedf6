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

package identity

// User defines a most simple user with an id defined as subject.
type User interface {
	Subject() string
}

// UserWithUsername is a User with an username different from subject.
type UserWithUsername interface {
	User
	Username() string
}

// UserWithOrganization is a User bound to a home organization, identified by
// the entity id of the identity provider the user originates from.
type UserWithOrganization interface {
	User
	Organization() string
}

// UserWithAttributes is a User carrying released attributes. Attributes can
// be removed again, for example after single use federation identifiers were
// derived from them.
type UserWithAttributes interface {
	User
	Attributes() map[string][]string
	Attribute(name string) (string, bool)
	DeleteAttribute(name string)
}
