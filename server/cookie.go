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

package server

import (
	"errors"
	"net/http"
	"time"

	jwt "gopkg.in/square/go-jose.v2/jwt"
)

var farPastExpiryTime = time.Unix(0, 0)

// setTGTCookie writes the provided TGT id encrypted into the TGT cookie.
func (s *Server) setTGTCookie(rw http.ResponseWriter, tgtID string) error {
	value, err := s.encryption.EncryptStringToHex(tgtID)
	if err != nil {
		return err
	}

	cookie := http.Cookie{
		Name:  s.tgtCookieName,
		Value: value,

		Path:     s.pathPrefix + "/sso/",
		Secure:   true,
		HttpOnly: true,
	}
	http.SetCookie(rw, &cookie)

	return nil
}

// tgtIDFromCookie returns the TGT id carried by the request's TGT cookie,
// the empty string when there is none or it cannot be decrypted.
func (s *Server) tgtIDFromCookie(req *http.Request) string {
	cookie, err := req.Cookie(s.tgtCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	tgtID, err := s.encryption.DecryptHexToString(cookie.Value)
	if err != nil {
		s.logger.WithError(err).Debugln("failed to decrypt tgt cookie")
		return ""
	}

	return tgtID
}

// removeTGTCookie expires the TGT cookie on the user agent.
func (s *Server) removeTGTCookie(rw http.ResponseWriter) {
	cookie := http.Cookie{
		Name: s.tgtCookieName,

		Path:     s.pathPrefix + "/sso/",
		Secure:   true,
		HttpOnly: true,

		Expires: farPastExpiryTime,
	}
	http.SetCookie(rw, &cookie)
}

// setSessionCookie writes the provided session id into the encrypted session
// cookie.
func (s *Server) setSessionCookie(rw http.ResponseWriter, sessionID string) error {
	if s.encrypter == nil {
		return errors.New("no encrypter")
	}

	claims := jwt.Claims{
		Subject: sessionID,
	}
	serialized, err := jwt.Encrypted(s.encrypter).Claims(claims).CompactSerialize()
	if err != nil {
		return err
	}

	cookie := http.Cookie{
		Name:  s.sessionCookieName,
		Value: serialized,

		Path:     s.pathPrefix + "/sso/",
		Secure:   true,
		HttpOnly: true,
	}
	http.SetCookie(rw, &cookie)

	return nil
}

// sessionIDFromCookie returns the session id carried by the request's
// session cookie, the empty string when there is none or it cannot be
// decrypted.
func (s *Server) sessionIDFromCookie(req *http.Request) string {
	cookie, err := req.Cookie(s.sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	token, err := jwt.ParseEncrypted(cookie.Value)
	if err != nil {
		return ""
	}

	claims := jwt.Claims{}
	if err := token.Claims(s.encryptionSecret, &claims); err != nil {
		s.logger.WithError(err).Debugln("failed to decrypt session cookie")
		return ""
	}

	return claims.Subject
}

// removeSessionCookie expires the session cookie on the user agent.
func (s *Server) removeSessionCookie(rw http.ResponseWriter) {
	cookie := http.Cookie{
		Name: s.sessionCookieName,

		Path:     s.pathPrefix + "/sso/",
		Secure:   true,
		HttpOnly: true,

		Expires: farPastExpiryTime,
	}
	http.SetCookie(rw, &cookie)
}
