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

package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"stash.kopano.io/kgol/rndm"

	"stash.kopano.io/kc/kssobridge/config"
	"stash.kopano.io/kc/kssobridge/encryption"
	"stash.kopano.io/kc/kssobridge/managers"
	"stash.kopano.io/kc/kssobridge/nameid"
	"stash.kopano.io/kc/kssobridge/utils"
)

// Backend names.
const (
	backendNameDummy = "dummy"
	backendNameLDAP  = "ldap"
)

// Defaults.
const (
	defaultSessionDurationSeconds    = 60 * 5           // 5 Minutes
	defaultTGTDurationSeconds        = 60 * 60 * 8      // 8 Hours
	defaultStateTokenDurationSeconds = 60 * 10          // 10 Minutes
	defaultNameIDFormat              = nameid.FormatterTypePersistent
)

// Config is a typed application config which represents the user accessible
// config params.
type Config struct {
	Iss         string
	URIBasePath string

	Insecure     bool
	TrustedProxy []string

	Listen string

	EncryptionSecretFile string

	Backend string

	AuthenticationRegistrationConf string
	RequestorRegistrationConf      string
	AuthorityRegistrationConf      string

	NameIDFormat string
	NameIDConf   string

	SessionDurationSeconds    uint64
	TGTDurationSeconds        uint64
	StateTokenDurationSeconds uint64

	DisableSingleSignon bool

	LogoutConfirm             bool
	LogoutStateAllowedOrigins []string
}

// Bootstrap is a data structure to hold configuration required to start
// kssod.
type Bootstrap interface {
	Config() *config.Config
	Managers() *managers.Managers
	BaseURI() *url.URL
	PathPrefix() string
	EncryptionSecret() []byte
	LogoutStateAllowedOrigins() []string
}

// Implementation of the bootstrap interface.
type bootstrap struct {
	baseURI     *url.URL
	uriBasePath string

	tlsClientConfig *tls.Config

	authenticationRegistrationConf string
	requestorRegistrationConf      string
	authorityRegistrationConf      string

	nameIDFormat string
	nameIDConf   string

	encryptionSecret []byte

	sessionDuration    time.Duration
	tgtDuration        time.Duration
	stateTokenDuration time.Duration

	backendName string

	ssoEnabled                bool
	logoutConfirm             bool
	logoutStateAllowedOrigins []string

	cfg      *config.Config
	managers *managers.Managers
}

// Config returns the server configuration.
func (bs *bootstrap) Config() *config.Config {
	return bs.cfg
}

// Managers returns the bootstrapped managers.
func (bs *bootstrap) Managers() *managers.Managers {
	return bs.managers
}

// BaseURI returns the external base URI of the accociated bootstrap.
func (bs *bootstrap) BaseURI() *url.URL {
	return bs.baseURI
}

// PathPrefix returns the URI base path of the accociated bootstrap.
func (bs *bootstrap) PathPrefix() string {
	return bs.uriBasePath
}

// EncryptionSecret returns the encryption secret of the accociated bootstrap.
func (bs *bootstrap) EncryptionSecret() []byte {
	return bs.encryptionSecret
}

// LogoutStateAllowedOrigins returns the origins allowed to poll logout state.
func (bs *bootstrap) LogoutStateAllowedOrigins() []string {
	return bs.logoutStateAllowedOrigins
}

// Boot is the main entry point to bootstrap the kssod service after
// validating the given configuration. The resulting Bootstrap struct can be
// used to retrieve the configured managers and their respective config.
//
// This function should be used by consumers which want to embed kssobridge
// as a library.
func Boot(ctx context.Context, bsConf *Config, serverConf *config.Config) (Bootstrap, error) {
	bs := &bootstrap{
		cfg: serverConf,
	}

	err := bs.initialize(bsConf)
	if err != nil {
		return nil, err
	}

	err = bs.setup(ctx, bsConf)
	if err != nil {
		return nil, err
	}

	return bs, nil
}

// initialize validates the parsed parameters from the commandline and adds
// them to the accociated Bootstrap data.
func (bs *bootstrap) initialize(cfg *Config) error {
	logger := bs.cfg.Logger
	var err error

	if cfg.Backend == "" {
		return fmt.Errorf("backend argument missing, use one of ldap, dummy")
	}
	bs.backendName = cfg.Backend

	bs.baseURI, err = url.Parse(cfg.Iss)
	if err != nil {
		return fmt.Errorf("invalid iss value, iss is not a valid URL, %v", err)
	} else if cfg.Iss == "" {
		return fmt.Errorf("missing iss value, did you provide the --iss parameter?")
	} else if bs.baseURI.Scheme != "https" {
		return fmt.Errorf("invalid iss value, URL must start with https://")
	} else if bs.baseURI.Host == "" {
		return fmt.Errorf("invalid iss value, URL must have a host")
	}

	bs.uriBasePath = cfg.URIBasePath

	if cfg.Insecure {
		bs.tlsClientConfig = utils.InsecureSkipVerifyTLSConfig()
		logger.Warnln("insecure mode, TLS client connections are susceptible to man-in-the-middle attacks")
	} else {
		bs.tlsClientConfig = utils.DefaultTLSConfig()
	}

	for _, trustedProxy := range cfg.TrustedProxy {
		if ip := net.ParseIP(trustedProxy); ip != nil {
			bs.cfg.TrustedProxyIPs = append(bs.cfg.TrustedProxyIPs, &ip)
			continue
		}
		if _, ipNet, errParseCIDR := net.ParseCIDR(trustedProxy); errParseCIDR == nil {
			bs.cfg.TrustedProxyNets = append(bs.cfg.TrustedProxyNets, ipNet)
			continue
		}
	}
	if len(bs.cfg.TrustedProxyIPs) > 0 {
		logger.Infoln("trusted proxy IPs", bs.cfg.TrustedProxyIPs)
	}
	if len(bs.cfg.TrustedProxyNets) > 0 {
		logger.Infoln("trusted proxy networks", bs.cfg.TrustedProxyNets)
	}

	encryptionSecretFn := cfg.EncryptionSecretFile

	if encryptionSecretFn != "" {
		logger.WithField("file", encryptionSecretFn).Infoln("loading encryption secret from file")
		bs.encryptionSecret, err = ioutil.ReadFile(encryptionSecretFn)
		if err != nil {
			return fmt.Errorf("failed to load encryption secret from file: %v", err)
		}
		if len(bs.encryptionSecret) != encryption.KeySize {
			return fmt.Errorf("invalid encryption secret size - must be %d bytes", encryption.KeySize)
		}
	} else {
		logger.Warnf("missing --encryption-secret parameter, using random encyption secret with %d bytes", encryption.KeySize)
		bs.encryptionSecret = rndm.GenerateRandomBytes(encryption.KeySize)
	}

	bs.cfg.ListenAddr = cfg.Listen

	bs.authenticationRegistrationConf = cfg.AuthenticationRegistrationConf
	if bs.authenticationRegistrationConf != "" {
		bs.authenticationRegistrationConf, _ = filepath.Abs(bs.authenticationRegistrationConf)
		if _, errStat := os.Stat(bs.authenticationRegistrationConf); errStat != nil {
			return fmt.Errorf("authentication-registration-conf file not found or unable to access: %v", errStat)
		}
	}

	bs.requestorRegistrationConf = cfg.RequestorRegistrationConf
	if bs.requestorRegistrationConf != "" {
		bs.requestorRegistrationConf, _ = filepath.Abs(bs.requestorRegistrationConf)
		if _, errStat := os.Stat(bs.requestorRegistrationConf); errStat != nil {
			return fmt.Errorf("requestor-registration-conf file not found or unable to access: %v", errStat)
		}
	}

	bs.authorityRegistrationConf = cfg.AuthorityRegistrationConf
	if bs.authorityRegistrationConf != "" {
		bs.authorityRegistrationConf, _ = filepath.Abs(bs.authorityRegistrationConf)
		if _, errStat := os.Stat(bs.authorityRegistrationConf); errStat != nil {
			return fmt.Errorf("authority-registration-conf file not found or unable to access: %v", errStat)
		}
	}

	bs.nameIDFormat = cfg.NameIDFormat
	if bs.nameIDFormat == "" {
		bs.nameIDFormat = defaultNameIDFormat
	}
	bs.nameIDConf = cfg.NameIDConf
	if bs.nameIDConf != "" {
		bs.nameIDConf, _ = filepath.Abs(bs.nameIDConf)
		if _, errStat := os.Stat(bs.nameIDConf); errStat != nil {
			return fmt.Errorf("nameid-conf file not found or unable to access: %v", errStat)
		}
	}

	bs.cfg.HTTPTransport = utils.HTTPTransportWithTLSClientConfig(bs.tlsClientConfig)

	sessionDurationSeconds := cfg.SessionDurationSeconds
	if sessionDurationSeconds == 0 {
		sessionDurationSeconds = defaultSessionDurationSeconds
	}
	bs.sessionDuration = time.Duration(sessionDurationSeconds) * time.Second

	tgtDurationSeconds := cfg.TGTDurationSeconds
	if tgtDurationSeconds == 0 {
		tgtDurationSeconds = defaultTGTDurationSeconds
	}
	bs.tgtDuration = time.Duration(tgtDurationSeconds) * time.Second

	stateTokenDurationSeconds := cfg.StateTokenDurationSeconds
	if stateTokenDurationSeconds == 0 {
		stateTokenDurationSeconds = defaultStateTokenDurationSeconds
	}
	bs.stateTokenDuration = time.Duration(stateTokenDurationSeconds) * time.Second

	bs.ssoEnabled = !cfg.DisableSingleSignon
	if !bs.ssoEnabled {
		logger.Warnln("single sign-on is disabled, every authentication runs interactively")
	}

	bs.logoutConfirm = cfg.LogoutConfirm
	bs.logoutStateAllowedOrigins = cfg.LogoutStateAllowedOrigins

	return nil
}

// setup takes care of setting up the managers based on the accociated
// Bootstrap's data.
func (bs *bootstrap) setup(ctx context.Context, cfg *Config) error {
	mgrs, err := newManagers(ctx, bs)
	if err != nil {
		return err
	}

	backend, err := bs.setupBackend(ctx, cfg)
	if err != nil {
		return err
	}
	mgrs.Set("backend", backend)

	ssoService, err := bs.setupSSO(ctx, mgrs)
	if err != nil {
		return err
	}
	mgrs.Set("sso", ssoService)

	logoutProfile, err := bs.setupLogout(ctx, mgrs, ssoService)
	if err != nil {
		return err
	}
	mgrs.Set("logout", logoutProfile)

	err = mgrs.Apply()
	if err != nil {
		return fmt.Errorf("failed to apply managers: %v", err)
	}

	bs.managers = mgrs

	return nil
}

// makeURIPath returns the provided subpath prefixed with the accociated
// bootstrap's base path.
func (bs *bootstrap) makeURIPath(subpath string) string {
	return bs.uriBasePath + subpath
}

// makeURI returns the provided subpath as absolute URI below the accociated
// bootstrap's base URI.
func (bs *bootstrap) makeURI(subpath string) *url.URL {
	uri, _ := url.Parse(bs.baseURI.String())
	uri.Path = bs.makeURIPath(subpath)

	return uri
}
