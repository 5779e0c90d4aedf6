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

package encryption

import (
	"encoding/hex"
	"errors"
)

// A Manager encrypts and decrypts string values with a fixed secret key.
type Manager struct {
	key     [KeySize]byte
	haveKey bool
}

// NewManager creates a new Manager without a key. A key must be set before
// the manager can be used.
func NewManager() *Manager {
	return &Manager{}
}

// SetKey sets the provided key on the accociated manager. The key must be
// exactly KeySize bytes long.
func (m *Manager) SetKey(key []byte) error {
	if len(key) != KeySize {
		return errors.New("invalid key size")
	}

	copy(m.key[:], key)
	m.haveKey = true
	return nil
}

// EncryptStringToHex encrypts the provided plain text and returns the result
// hex encoded.
func (m *Manager) EncryptStringToHex(plaintext string) (string, error) {
	if !m.haveKey {
		return "", errors.New("no key")
	}

	ciphertext, err := Encrypt([]byte(plaintext), &m.key)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(ciphertext), nil
}

// DecryptHexToString decrypts the provided hex encoded cipher text and
// returns the contained plain text.
func (m *Manager) DecryptHexToString(ciphertextHex string) (string, error) {
	if !m.haveKey {
		return "", errors.New("no key")
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", err
	}

	plaintext, err := Decrypt(ciphertext, &m.key)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
