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

package nameid

import (
	"strings"
	"testing"
)

type testUser struct {
	subject    string
	attributes map[string][]string
}

func (u *testUser) Subject() string {
	return u.subject
}

func (u *testUser) Attributes() map[string][]string {
	return u.attributes
}

func (u *testUser) Attribute(name string) (string, bool) {
	values, ok := u.attributes[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (u *testUser) DeleteAttribute(name string) {
	delete(u.attributes, name)
}

func newTestUser() *testUser {
	return &testUser{
		subject: "user1-id",
		attributes: map[string][]string{
			"mail":       {"user1@kopano.local"},
			"employeeID": {"E-1001"},
		},
	}
}

func TestPersistentFormatterDefault(t *testing.T) {
	f, err := NewFormatter(FormatterTypePersistent, &Config{})
	if err != nil {
		t.Fatal(err)
	}

	value, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "user1-id!https://sp.example/metadata" {
		t.Errorf("unexpected name id: %v", value)
	}
}

func TestPersistentFormatterAttribute(t *testing.T) {
	f, err := NewFormatter(FormatterTypePersistent, &Config{
		Attribute:     "mail",
		NoEntityScope: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	value, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "user1@kopano.local" {
		t.Errorf("unexpected name id: %v", value)
	}
}

func TestPersistentFormatterOpaque(t *testing.T) {
	f, err := NewFormatter(FormatterTypePersistent, &Config{
		Opaque: true,
		Salt:   "pepper",
	})
	if err != nil {
		t.Fatal(err)
	}

	first, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(first, "user1-id") {
		t.Error("opaque name id must not expose the raw user id")
	}
	if !strings.HasSuffix(first, "!https://sp.example/metadata") {
		t.Errorf("opaque name id must keep the entity scope: %v", first)
	}

	second, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("opaque name ids must be stable for the same user and entity")
	}

	// Without a salt there is nothing to hash with, the value stays plain.
	plain, err := NewFormatter(FormatterTypePersistent, &Config{Opaque: true})
	if err != nil {
		t.Fatal(err)
	}
	value, err := plain.Format(newTestUser(), "", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "user1-id" {
		t.Errorf("unexpected name id: %v", value)
	}
}

func TestPersistentFormatterRequiresUser(t *testing.T) {
	f, err := NewFormatter(FormatterTypePersistent, &Config{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = f.Format(nil, "https://sp.example/metadata", "", nil); err == nil {
		t.Error("format without user must fail")
	}
}

func TestTransientFormatter(t *testing.T) {
	f, err := NewFormatter(FormatterTypeTransient, &Config{})
	if err != nil {
		t.Fatal(err)
	}

	first, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 32 {
		t.Errorf("unexpected default length: %d", len(first))
	}

	second, err := f.Format(newTestUser(), "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("transient name ids must be fresh on every request")
	}

	if !f.IsDomainUnique() {
		t.Error("transient name ids must be unique within their domain")
	}
}

func TestTransientFormatterLengthBounds(t *testing.T) {
	if _, err := NewFormatter(FormatterTypeTransient, &Config{Length: 64}); err != nil {
		t.Errorf("length within bounds must be accepted: %v", err)
	}
	if _, err := NewFormatter(FormatterTypeTransient, &Config{Length: 1000}); err == nil {
		t.Error("length above the maximum must be rejected")
	}
	if _, err := NewFormatter(FormatterTypeTransient, &Config{Length: -1}); err == nil {
		t.Error("negative length must be rejected")
	}
}

func TestAttributeFormatter(t *testing.T) {
	f, err := NewFormatter(FormatterTypeAttribute, &Config{Attribute: "mail"})
	if err != nil {
		t.Fatal(err)
	}

	user := newTestUser()
	value, err := f.Format(user, "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "user1@kopano.local" {
		t.Errorf("unexpected name id: %v", value)
	}
	if _, ok := user.Attribute("mail"); !ok {
		t.Error("attribute must survive without strip")
	}

	if _, err = f.Format(&testUser{subject: "bare"}, "", "", nil); err == nil {
		t.Error("missing attribute must fail")
	}
}

func TestAttributeFormatterStrip(t *testing.T) {
	f, err := NewFormatter(FormatterTypeAttribute, &Config{
		Attribute:      "employeeID",
		StripAttribute: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	user := newTestUser()
	value, err := f.Format(user, "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "E-1001" {
		t.Errorf("unexpected name id: %v", value)
	}
	if _, ok := user.Attribute("employeeID"); ok {
		t.Error("stripped attribute must be removed from the user")
	}
}

func TestAttributeFormatterRequiresAttribute(t *testing.T) {
	if _, err := NewFormatter(FormatterTypeAttribute, &Config{}); err == nil {
		t.Error("attribute formatter without attribute must be rejected")
	}
}

func TestOverrideFormatter(t *testing.T) {
	f, err := NewFormatter(FormatterTypeOverride, &Config{
		OverrideEntityID:  "https://legacy.example/metadata",
		OverrideAttribute: "employeeID",
	})
	if err != nil {
		t.Fatal(err)
	}

	user := newTestUser()

	value, err := f.Format(user, "https://legacy.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "E-1001" {
		t.Errorf("unexpected override name id: %v", value)
	}

	// Every other entity gets the persistent default.
	value, err = f.Format(user, "https://sp.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value != "user1-id!https://sp.example/metadata" {
		t.Errorf("unexpected default name id: %v", value)
	}
}

func TestOverrideFormatterSalted(t *testing.T) {
	f, err := NewFormatter(FormatterTypeOverride, &Config{
		OverrideEntityID:  "https://legacy.example/metadata",
		OverrideAttribute: "employeeID",
		Salt:              "pepper",
	})
	if err != nil {
		t.Fatal(err)
	}

	value, err := f.Format(newTestUser(), "https://legacy.example/metadata", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if value == "E-1001" || strings.Contains(value, "E-1001") {
		t.Errorf("salted override must hash the attribute: %v", value)
	}
}

func TestOverrideFormatterConfiguration(t *testing.T) {
	if _, err := NewFormatter(FormatterTypeOverride, &Config{OverrideAttribute: "mail"}); err == nil {
		t.Error("override formatter without entity id must be rejected")
	}
	if _, err := NewFormatter(FormatterTypeOverride, &Config{OverrideEntityID: "https://legacy.example/metadata"}); err == nil {
		t.Error("override formatter without attribute must be rejected")
	}
}

func TestNewFormatterUnknownType(t *testing.T) {
	if _, err := NewFormatter("does-not-exist", &Config{}); err == nil {
		t.Error("unknown formatter type must be rejected")
	}
}
