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

package sso

import (
	"github.com/sirupsen/logrus"

	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/requestors"
	"stash.kopano.io/kc/kssobridge/sso/storage"
)

// Config defines a Service's configuration settings.
type Config struct {
	// Enabled globally switches single sign-on. When false, every SSO
	// check fails soft and every authentication creates no TGT.
	Enabled bool

	SessionStore storage.SessionStore
	TGTStore     storage.TGTStore

	Authentication *authentication.Registry
	Requestors     *requestors.Registry

	Logger logrus.FieldLogger
}
