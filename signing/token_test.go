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

package signing

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

func TestStateTokenRoundtrip(t *testing.T) {
	signer, err := NewStateTokenSigner(testSeed, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := signer.Sign("session1")
	if err != nil {
		t.Fatal(err)
	}

	sessionID, err := signer.Validate(raw)
	if err != nil {
		t.Fatal(err)
	}
	if sessionID != "session1" {
		t.Errorf("unexpected session id: %v", sessionID)
	}
}

func TestStateTokenInvalidSeed(t *testing.T) {
	if _, err := NewStateTokenSigner([]byte("short"), time.Minute); err == nil {
		t.Error("short seed must be rejected")
	}
}

func TestStateTokenExpired(t *testing.T) {
	signer, err := NewStateTokenSigner(testSeed, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := signer.Sign("session1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = signer.Validate(raw); err == nil {
		t.Error("expired state token must be rejected")
	}
}

func TestStateTokenWrongKey(t *testing.T) {
	signer, err := NewStateTokenSigner(testSeed, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewStateTokenSigner([]byte("fedcba9876543210fedcba9876543210"), 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := signer.Sign("session1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = other.Validate(raw); err == nil {
		t.Error("token signed with a different key must be rejected")
	}
}

func TestStateTokenWrongSigningMethod(t *testing.T) {
	signer, err := NewStateTokenSigner(testSeed, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	claims := &StateTokenClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Minute).Unix(),
		},
		SessionID: "session1",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(testSeed)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = signer.Validate(raw); err == nil {
		t.Error("hmac signed token must be rejected")
	}
}

func TestStateTokenWithoutSession(t *testing.T) {
	signer, err := NewStateTokenSigner(testSeed, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := signer.Sign("")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = signer.Validate(raw); err == nil {
		t.Error("state token without session must be rejected")
	}
}
