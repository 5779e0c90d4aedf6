/*
 * Copyright 2017-2019 Kopano and its licensors
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

package bootstrap

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/ghodss/yaml"

	"stash.kopano.io/kc/kssobridge/authentication"
	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/encryption"
	"stash.kopano.io/kc/kssobridge/managers"
	"stash.kopano.io/kc/kssobridge/nameid"
	"stash.kopano.io/kc/kssobridge/requestors"
	"stash.kopano.io/kc/kssobridge/signing"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/logout"
	"stash.kopano.io/kc/kssobridge/sso/storage"
	storageManagers "stash.kopano.io/kc/kssobridge/sso/storage/managers"
)

func newManagers(ctx context.Context, bs *bootstrap) (*managers.Managers, error) {
	logger := bs.cfg.Logger

	var err error
	mgrs := managers.New()

	// Encryption manager.
	encryptionManager := encryption.NewManager()
	err = encryptionManager.SetKey(bs.encryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid --encryption-secret parameter value for encryption: %v", err)
	}
	mgrs.Set("encryption", encryptionManager)
	logger.Infof("encryption set up with %d key size", encryption.KeySize)

	// Session and TGT storage managers.
	mgrs.Set("sessions", storageManagers.NewSessionMemoryMapManager(ctx, bs.sessionDuration, logger))
	mgrs.Set("tgts", storageManagers.NewTGTMemoryMapManager(ctx, bs.tgtDuration, logger))

	// Authentication method and profile registry manager.
	authenticationRegistry, err := authentication.NewRegistry(bs.authenticationRegistrationConf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authentication registry: %v", err)
	}
	mgrs.Set("authentication", authenticationRegistry)

	// Requestor registry manager.
	requestorRegistry, err := requestors.NewRegistry(bs.requestorRegistrationConf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create requestor registry: %v", err)
	}
	mgrs.Set("requestors", requestorRegistry)

	// Remote authorities registry manager.
	authorityRegistry, err := authorities.NewRegistry(ctx, bs.makeURI(""), bs.authorityRegistrationConf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorities registry: %v", err)
	}
	mgrs.Set("authorities", authorityRegistry)

	// NameID formatter manager.
	formatter, err := newNameIDFormatter(bs)
	if err != nil {
		return nil, fmt.Errorf("failed to create nameid formatter: %v", err)
	}
	mgrs.Set("nameid", formatter)

	// State token signer manager.
	stateTokenSigner, err := signing.NewStateTokenSigner(bs.encryptionSecret, bs.stateTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create state token signer: %v", err)
	}
	mgrs.Set("statetoken", stateTokenSigner)

	return mgrs, nil
}

func newNameIDFormatter(bs *bootstrap) (nameid.Formatter, error) {
	conf := &nameid.Config{}

	if bs.nameIDConf != "" {
		confFile, err := ioutil.ReadFile(bs.nameIDConf)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(confFile, conf); err != nil {
			return nil, err
		}
	}
	conf.Logger = bs.cfg.Logger

	return nameid.NewFormatter(bs.nameIDFormat, conf)
}

func (bs *bootstrap) setupSSO(ctx context.Context, mgrs *managers.Managers) (*sso.Service, error) {
	logger := bs.cfg.Logger

	ssoService, err := sso.NewService(ctx, &sso.Config{
		Enabled: bs.ssoEnabled,

		SessionStore: mgrs.Must("sessions").(storage.SessionStore),
		TGTStore:     mgrs.Must("tgts").(storage.TGTStore),

		Authentication: mgrs.Must("authentication").(*authentication.Registry),
		Requestors:     mgrs.Must("requestors").(*requestors.Registry),

		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sso service: %v", err)
	}

	return ssoService, nil
}

func (bs *bootstrap) setupLogout(ctx context.Context, mgrs *managers.Managers, ssoService *sso.Service) (*logout.Profile, error) {
	logger := bs.cfg.Logger

	saml2Method := logout.NewSAML2Method(
		mgrs.Must("authorities").(*authorities.Registry),
		mgrs.Must("nameid").(nameid.Formatter),
		bs.baseURI.String(),
		logger,
	)

	logoutProfile, err := logout.NewProfile(ctx, &logout.Config{
		SSO: ssoService,

		Methods: []logout.Method{saml2Method},

		ConfirmDefault: bs.logoutConfirm,

		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logout profile: %v", err)
	}

	return logoutProfile, nil
}
