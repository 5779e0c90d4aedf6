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
	"context"
	"net/http"
	"net/url"

	"stash.kopano.io/kc/kssobridge/sso/session"
	"stash.kopano.io/kc/kssobridge/sso/tgt"
)

// Status is the tri-state outcome of a federated logout protocol step.
type Status int

// Federated logout protocol step outcomes.
const (
	// StatusInProgress means the remote exchange was started and a follow
	// up request is awaited. The session is not modified beyond the
	// stashed method reference.
	StatusInProgress Status = iota
	// StatusLoggedOut means the remote party confirmed the logout.
	StatusLoggedOut
	// StatusFailed means the remote exchange failed. The caller falls
	// back to forced logout.
	StatusFailed
)

func (status Status) String() string {
	switch status {
	case StatusInProgress:
		return "in-progress"
	case StatusLoggedOut:
		return "logged-out"
	default:
		return "failed"
	}
}

// A Method implements federated logout towards the remote identity provider
// which authenticated a TGT's user. A federated logout exchange spans
// multiple independent HTTP requests, correlated through the method id
// stashed on the session.
type Method interface {
	// ID returns the unique id of the accociated method.
	ID() string
	// CanHandle returns true when the accociated method is able to run a
	// federated logout for the provided session and TGT.
	CanHandle(ctx context.Context, sess *session.Session, t *tgt.TGT) bool
	// Logout starts the federated logout exchange. On StatusInProgress
	// the returned URL is the redirect target of the remote exchange and
	// the provided state must come back with the follow up request.
	Logout(ctx context.Context, sess *session.Session, t *tgt.TGT, state string) (Status, *url.URL, error)
	// FinishLogout consumes the follow up request of an in flight
	// federated logout exchange.
	FinishLogout(ctx context.Context, req *http.Request, sess *session.Session, t *tgt.TGT) (Status, error)
}
