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
	"context"

	kssobridge "stash.kopano.io/kc/kssobridge"
	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/identity"
	"stash.kopano.io/kc/kssobridge/sso/session"
)

// StartSession creates and persists a new authentication session for the
// provided requestor, running pre-authorization. Unknown requestors are
// rejected with a user error.
func (s *Service) StartSession(ctx context.Context, requestorID string, forcedUserID string, requestedProfileIDs []string) (*session.Session, error) {
	sess := s.sessions.Create(ctx, requestorID)
	if err := sess.UpdateState(session.StatePreAuthZInProgress); err != nil {
		return nil, NewInternalError("session state", err)
	}

	if _, ok := s.requestors.Get(requestorID); !ok {
		sess.UpdateState(session.StatePreAuthZFailed)
		s.persistBestEffort(ctx, sess)
		return nil, NewUserError(kssobridge.EventRequestInvalid, "unknown requestor")
	}

	sess.SetForcedUserID(forcedUserID)
	sess.SetRequestedProfileIDs(requestedProfileIDs)

	if err := sess.UpdateState(session.StatePreAuthZOK); err != nil {
		return nil, NewInternalError("session state", err)
	}
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return nil, NewInternalError("failed to persist session", err)
	}

	return sess, nil
}

// BeginAuthNSelection moves the provided session into authentication method
// selection, computing the candidate profiles from the requestor pool. An
// empty candidate set is a terminal failure.
func (s *Service) BeginAuthNSelection(ctx context.Context, sess *session.Session) error {
	if err := sess.UpdateState(session.StateAuthNSelectionInProgress); err != nil {
		return NewInternalError("session state", err)
	}

	var candidates []*authentication.Profile
	if pool := s.requestors.PoolForRequestor(sess.RequestorID()); pool != nil {
		for _, profileID := range pool.RequiredProfiles {
			profile, ok := s.authentication.Profile(profileID)
			if !ok || !profile.Enabled() {
				continue
			}
			candidates = append(candidates, profile)
		}
	}

	if len(candidates) == 0 {
		sess.UpdateState(session.StateAuthNSelectionFailed)
		s.persistBestEffort(ctx, sess)
		return NewUserError(kssobridge.EventAuthNProfileNotAvailable, "no authentication profile available for requestor")
	}

	sess.SetCandidateProfiles(candidates)
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return NewInternalError("failed to persist session", err)
	}

	return nil
}

// SelectProfile selects the authentication profile with the provided id for
// the provided session. The profile must exist, be enabled and be a member
// of the session's candidate set, each violation raises its own user facing
// error.
func (s *Service) SelectProfile(ctx context.Context, sess *session.Session, profileID string) error {
	profile, ok := s.authentication.Profile(profileID)
	if !ok {
		return NewUserError(kssobridge.EventAuthNProfileNotAvailable, "selected authentication profile does not exist")
	}
	if !profile.Enabled() {
		return NewUserError(kssobridge.EventAuthNProfileDisabled, "selected authentication profile is disabled")
	}

	allowed := false
	for _, candidate := range sess.CandidateProfiles() {
		if candidate.ID() == profileID {
			allowed = true
			break
		}
	}
	if !allowed {
		return NewUserError(kssobridge.EventAuthNProfileInvalid, "selected authentication profile is not allowed for this session")
	}

	sess.SetSelectedProfile(profile)
	if err := sess.UpdateState(session.StateAuthNSelectionOK); err != nil {
		return NewInternalError("session state", err)
	}
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return NewInternalError("failed to persist session", err)
	}

	return nil
}

// BeginAuthentication moves the provided session into authentication.
func (s *Service) BeginAuthentication(ctx context.Context, sess *session.Session) error {
	if err := sess.UpdateState(session.StateAuthNInProgress); err != nil {
		return NewInternalError("session state", err)
	}
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return NewInternalError("failed to persist session", err)
	}

	return nil
}

// CompleteAuthentication records the provided authenticated user on the
// session, merges the result into the session's TGT and finishes with
// post-authorization.
func (s *Service) CompleteAuthentication(ctx context.Context, sess *session.Session, user identity.User) error {
	if user == nil {
		sess.UpdateState(session.StateAuthNFailed)
		s.persistBestEffort(ctx, sess)
		return NewUserError(kssobridge.EventAuthNFailed, "authentication did not yield a user")
	}

	if forcedUserID := sess.ForcedUserID(); forcedUserID != "" && forcedUserID != userSubject(user) {
		sess.UpdateState(session.StateAuthNFailed)
		s.persistBestEffort(ctx, sess)
		return NewUserError(kssobridge.EventTGTUserInvalid, "authenticated user does not match forced user")
	}

	sess.SetUser(user)
	if err := sess.UpdateState(session.StateAuthNOK); err != nil {
		return NewInternalError("session state", err)
	}

	if _, err := s.HandleSingleSignon(ctx, sess); err != nil {
		return err
	}

	if err := sess.UpdateState(session.StatePostAuthZInProgress); err != nil {
		return NewInternalError("session state", err)
	}
	if err := sess.UpdateState(session.StatePostAuthZOK); err != nil {
		return NewInternalError("session state", err)
	}
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return NewInternalError("failed to persist session", err)
	}

	return nil
}

func (s *Service) persistBestEffort(ctx context.Context, sess *session.Session) {
	if err := s.sessions.Persist(ctx, sess); err != nil {
		s.logger.WithError(err).Warnln("failed to persist session")
	}
}
