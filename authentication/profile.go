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

import (
	"github.com/deckarep/golang-set"
)

// A Profile is a named collection of authentication methods. Profiles form a
// partial order on their method sets which expresses authentication strength,
// a profile covering all methods of another is considered at least as strong.
type Profile struct {
	id      string
	enabled bool

	methods   []*Method
	methodIDs mapset.Set
}

// NewProfile creates a new Profile with the provided id and methods.
func NewProfile(id string, enabled bool, methods []*Method) *Profile {
	methodIDs := mapset.NewThreadUnsafeSet()
	for _, method := range methods {
		methodIDs.Add(method.ID)
	}

	return &Profile{
		id:      id,
		enabled: enabled,

		methods:   methods,
		methodIDs: methodIDs,
	}
}

// ID returns the id of the accociated profile.
func (p *Profile) ID() string {
	return p.id
}

// Enabled returns whether or not the accociated profile is enabled.
func (p *Profile) Enabled() bool {
	return p.enabled
}

// Methods returns the methods of the accociated profile.
func (p *Profile) Methods() []*Method {
	return p.methods
}

// MethodIDs returns the ids of all methods of the accociated profile.
func (p *Profile) MethodIDs() []string {
	ids := make([]string, 0, len(p.methods))
	for _, method := range p.methods {
		ids = append(ids, method.ID)
	}
	return ids
}

// Method returns the method with the provided id from the accociated profile
// or nil when the profile contains no such method.
func (p *Profile) Method(id string) *Method {
	for _, method := range p.methods {
		if method.ID == id {
			return method
		}
	}
	return nil
}

// Contains returns true when the accociated profile includes a method with
// the provided id.
func (p *Profile) Contains(id string) bool {
	return p.methodIDs.Contains(id)
}

// Dominates returns true when the accociated profile includes every method of
// the provided other profile. A profile which dominates another is at least
// as strong as the other with respect to TGT sufficiency.
func (p *Profile) Dominates(other *Profile) bool {
	if other == nil {
		return true
	}
	return other.methodIDs.IsSubset(p.methodIDs)
}

// Compare compares the strength of the accociated profile with the provided
// other profile. It returns 0 when both cover the same methods, a positive
// value when the accociated profile is stronger, a negative value when it is
// weaker. The second return value is false when the profiles are not
// comparable, strength is a partial order only.
func (p *Profile) Compare(other *Profile) (int, bool) {
	switch {
	case p.methodIDs.Equal(other.methodIDs):
		return 0, true
	case other.methodIDs.IsSubset(p.methodIDs):
		return 1, true
	case p.methodIDs.IsSubset(other.methodIDs):
		return -1, true
	default:
		return 0, false
	}
}

// Accumulated is a growing set of satisfied authentication methods as
// recorded in a TGT. Methods are only ever added within a TGT's lifetime.
type Accumulated struct {
	methodIDs mapset.Set
	ordered   []string
}

// NewAccumulated creates a new empty Accumulated method record.
func NewAccumulated() *Accumulated {
	return &Accumulated{
		methodIDs: mapset.NewThreadUnsafeSet(),
	}
}

// Add adds the provided method id to the accociated record. It returns false
// when the method was already present.
func (a *Accumulated) Add(id string) bool {
	if !a.methodIDs.Add(id) {
		return false
	}
	a.ordered = append(a.ordered, id)
	return true
}

// Contains returns true when the provided method id is part of the
// accociated record.
func (a *Accumulated) Contains(id string) bool {
	return a.methodIDs.Contains(id)
}

// MethodIDs returns all method ids of the accociated record in the order
// they were added.
func (a *Accumulated) MethodIDs() []string {
	ids := make([]string, len(a.ordered))
	copy(ids, a.ordered)
	return ids
}

// Satisfies returns true when the accociated record covers every method
// required by the provided profile.
func (a *Accumulated) Satisfies(profile *Profile) bool {
	if profile == nil {
		return true
	}
	return profile.methodIDs.IsSubset(a.methodIDs)
}
