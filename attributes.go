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

package kssobridge

// An AttributeKey identifies a value inside a Session or TGT attribute bag.
// Keys are owned by the package which defines them, the owner value avoids
// collisions between features sharing the same bag.
type AttributeKey struct {
	Owner string
	Name  string
}

// String implements the Stringer interface.
func (k AttributeKey) String() string {
	return k.Owner + "/" + k.Name
}
