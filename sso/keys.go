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
	kssobridge "stash.kopano.io/kc/kssobridge"
)

// Attribute bag keys owned by this package.
var (
	// AttributeShadowIDPs stores the alias to entity id mapping of remote
	// identity providers reached through a proxy path, as map[string]string
	// on a TGT.
	AttributeShadowIDPs = kssobridge.AttributeKey{Owner: "sso", Name: "shadow-idps"}

	// AttributeShadowIDPAlias stores the IDP alias path parameter of the
	// current request as string on a Session.
	AttributeShadowIDPAlias = kssobridge.AttributeKey{Owner: "sso", Name: "shadow-idp-alias"}

	// AttributeShadowIDPEntityID stores the entity id of the remote IDP
	// behind the current alias as string on a Session.
	AttributeShadowIDPEntityID = kssobridge.AttributeKey{Owner: "sso", Name: "shadow-idp-entity-id"}

	// AttributeShadowIDPRequestors stores which requestor most recently
	// signed on through each shadow IDP alias, as map[string]string on a
	// TGT. Logout uses it to drop the aliases of the leaving requestor.
	AttributeShadowIDPRequestors = kssobridge.AttributeKey{Owner: "sso", Name: "shadow-idp-requestors"}

	// AttributeDisabledSSOMethods stores the method ids for which single
	// sign-on was disabled within the scope of a Session, as
	// map[string]bool on a Session.
	AttributeDisabledSSOMethods = kssobridge.AttributeKey{Owner: "sso", Name: "disabled-sso-methods"}

	// AttributeSessionIndexes stores the SAML2 session index per remote
	// authority as map[string]string on a TGT, consumed by federated
	// logout.
	AttributeSessionIndexes = kssobridge.AttributeKey{Owner: "sso", Name: "session-indexes"}

	// AttributeRemoteAuthorityID stores the id of the remote authority the
	// current session authenticated against as string on a Session.
	AttributeRemoteAuthorityID = kssobridge.AttributeKey{Owner: "sso", Name: "remote-authority-id"}

	// AttributeRemoteSessionIndex stores the SAML2 session index received
	// from the remote authority as string on a Session.
	AttributeRemoteSessionIndex = kssobridge.AttributeKey{Owner: "sso", Name: "remote-session-index"}

	// AttributeRemoteAuthNExtra stores the request correlation data
	// returned when the remote authentication request was made, as
	// map[string]interface{} on a Session. It is consumed when the remote
	// authority's response arrives.
	AttributeRemoteAuthNExtra = kssobridge.AttributeKey{Owner: "sso", Name: "remote-authn-extra"}
)
