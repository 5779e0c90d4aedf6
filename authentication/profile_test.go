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
	"testing"
)

func newTestMethods(ids ...string) []*Method {
	methods := make([]*Method, 0, len(ids))
	for _, id := range ids {
		methods = append(methods, &Method{
			ID:      id,
			Enabled: true,
		})
	}
	return methods
}

func TestProfileCompare(t *testing.T) {
	pwd := NewProfile("pwd", true, newTestMethods("pwd"))
	pwdAgain := NewProfile("pwd-again", true, newTestMethods("pwd"))
	pwdOTP := NewProfile("pwd-otp", true, newTestMethods("pwd", "otp"))
	cert := NewProfile("cert", true, newTestMethods("cert"))

	if result, comparable := pwd.Compare(pwdAgain); !comparable || result != 0 {
		t.Errorf("profiles with equal methods must compare equal, got %v %v", result, comparable)
	}
	if result, comparable := pwdOTP.Compare(pwd); !comparable || result <= 0 {
		t.Errorf("superset profile must compare stronger, got %v %v", result, comparable)
	}
	if result, comparable := pwd.Compare(pwdOTP); !comparable || result >= 0 {
		t.Errorf("subset profile must compare weaker, got %v %v", result, comparable)
	}
	if _, comparable := pwd.Compare(cert); comparable {
		t.Errorf("disjoint profiles must not be comparable")
	}
}

func TestProfileDominates(t *testing.T) {
	pwd := NewProfile("pwd", true, newTestMethods("pwd"))
	pwdOTP := NewProfile("pwd-otp", true, newTestMethods("pwd", "otp"))

	if !pwdOTP.Dominates(pwd) {
		t.Errorf("profile covering all methods of another must dominate it")
	}
	if pwd.Dominates(pwdOTP) {
		t.Errorf("profile missing methods of another must not dominate it")
	}
	if !pwd.Dominates(nil) {
		t.Errorf("every profile dominates nil")
	}
}

func TestAccumulatedSatisfies(t *testing.T) {
	pwdOTP := NewProfile("pwd-otp", true, newTestMethods("pwd", "otp"))

	accumulated := NewAccumulated()
	if accumulated.Satisfies(pwdOTP) {
		t.Errorf("empty record must not satisfy a profile with methods")
	}

	if !accumulated.Add("pwd") {
		t.Errorf("adding a new method must return true")
	}
	if accumulated.Satisfies(pwdOTP) {
		t.Errorf("partial record must not satisfy the profile")
	}

	accumulated.Add("otp")
	if !accumulated.Satisfies(pwdOTP) {
		t.Errorf("complete record must satisfy the profile")
	}

	// Extra methods never hurt.
	accumulated.Add("cert")
	if !accumulated.Satisfies(pwdOTP) {
		t.Errorf("record with extra methods must still satisfy the profile")
	}
}

func TestAccumulatedAddIsIdempotent(t *testing.T) {
	accumulated := NewAccumulated()

	accumulated.Add("pwd")
	if accumulated.Add("pwd") {
		t.Errorf("adding a known method must return false")
	}

	if ids := accumulated.MethodIDs(); len(ids) != 1 || ids[0] != "pwd" {
		t.Errorf("unexpected method ids: %v", ids)
	}
}

func TestAccumulatedSatisfiesNil(t *testing.T) {
	accumulated := NewAccumulated()
	if !accumulated.Satisfies(nil) {
		t.Errorf("every record satisfies nil")
	}
}
