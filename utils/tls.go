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

package utils

import (
	"crypto/tls"
)

// DefaultTLSConfig returns a new tls.Config with secure defaults.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
}

// InsecureSkipVerifyTLSConfig returns a new tls.Config which does not verify
// server certificates.
func InsecureSkipVerifyTLSConfig() *tls.Config {
	config := DefaultTLSConfig()
	config.InsecureSkipVerify = true

	return config
}
