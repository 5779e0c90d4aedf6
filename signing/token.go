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
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/ed25519"
)

// StateTokenClaims are the claims carried by signed state tokens. State
// tokens correlate the independent requests of a federated exchange with the
// session which started it.
type StateTokenClaims struct {
	jwt.StandardClaims

	SessionID string `json:"sid"`
}

// A StateTokenSigner creates and validates signed state tokens with an
// Ed25519 key pair.
type StateTokenSigner struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	expiration time.Duration
}

// NewStateTokenSigner creates a new StateTokenSigner with a key pair derived
// from the provided seed.
func NewStateTokenSigner(seed []byte, expiration time.Duration) (*StateTokenSigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid seed size")
	}

	privateKey := ed25519.NewKeyFromSeed(seed)

	return &StateTokenSigner{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),

		expiration: expiration,
	}, nil
}

// Sign creates a signed state token for the provided session id.
func (s *StateTokenSigner) Sign(sessionID string) (string, error) {
	claims := &StateTokenClaims{
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(s.expiration).Unix(),
		},

		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Validate parses and validates the provided state token and returns the
// session id it carries.
func (s *StateTokenSigner) Validate(raw string) (string, error) {
	claims := &StateTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*SigningMethodEdwardsCurve); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.publicKey, nil
	})
	if err != nil {
		return "", err
	}

	if claims.SessionID == "" {
		return "", errors.New("state token carries no session")
	}

	return claims.SessionID, nil
}
