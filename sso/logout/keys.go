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

package logout

import (
	kssobridge "stash.kopano.io/kc/kssobridge"
)

// Attribute bag keys owned by this package.
var (
	// AttributeMethodID stores the id of the federated logout method which
	// has an exchange in flight, as string on a Session. A resume request
	// must find the same method again.
	AttributeMethodID = kssobridge.AttributeKey{Owner: "logout", Name: "method-id"}

	// AttributeResults stores the per listener logout results of the last
	// local logout fan-out as []Result on a Session.
	AttributeResults = kssobridge.AttributeKey{Owner: "logout", Name: "results"}

	// AttributeRunID stores the id of the active fan-out run as string on
	// a Session.
	AttributeRunID = kssobridge.AttributeKey{Owner: "logout", Name: "run-id"}
)
