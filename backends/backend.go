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

import (
	"context"

	"stash.kopano.io/kc/kssobridge/identity"
)

// A Backend provides functionality to logon local users and to fetch user
// meta data for the single sign-on flows.
type Backend interface {
	RunWithContext(context.Context) error

	Logon(ctx context.Context, username string, password string) (success bool, user identity.User, err error)
	ResolveUserByUsername(ctx context.Context, username string) (user identity.UserWithUsername, err error)

	Name() string
}
