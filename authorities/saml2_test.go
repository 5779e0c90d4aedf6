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
	"testing"

	"github.com/crewjam/saml"
)

func TestSAML2SessionIndexValue(t *testing.T) {
	ar := &saml2AuthorityRegistration{}

	if value := ar.SessionIndexValue(nil); value != "" {
		t.Errorf("nil assertion must yield no session index, got %v", value)
	}

	assertion := &saml.Assertion{
		AuthnStatements: []saml.AuthnStatement{
			{},
			{SessionIndex: "idx-1"},
			{SessionIndex: "idx-2"},
		},
	}
	if value := ar.SessionIndexValue(assertion); value != "idx-1" {
		t.Errorf("unexpected session index: %v", value)
	}
}
