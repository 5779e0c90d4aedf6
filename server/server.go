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
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	jose "gopkg.in/square/go-jose.v2"

	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/backends"
	"stash.kopano.io/kc/kssobridge/config"
	"stash.kopano.io/kc/kssobridge/encryption"
	"stash.kopano.io/kc/kssobridge/signing"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/logout"
)

// Server is our HTTP server implementation.
type Server struct {
	cfg        *config.Config
	listenAddr string
	logger     logrus.FieldLogger

	baseURI    *url.URL
	pathPrefix string

	sso         *sso.Service
	logout      *logout.Profile
	authorities *authorities.Registry
	backend     backends.Backend

	encryption       *encryption.Manager
	encrypter        jose.Encrypter
	encryptionSecret []byte
	stateToken       *signing.StateTokenSigner

	tgtCookieName     string
	sessionCookieName string

	logoutStateCors    *cors.Cors
	logoutStateOrigins map[string]bool

	mux http.Handler
}

// NewServer constructs a server from the provided parameters.
func NewServer(c *Config) (*Server, error) {
	if c.Config == nil {
		return nil, errors.New("server requires a base configuration")
	}
	if c.SSO == nil || c.Logout == nil {
		return nil, errors.New("server requires sso and logout services")
	}
	if c.EncryptionManager == nil {
		return nil, errors.New("server requires an encryption manager")
	}

	s := &Server{
		cfg:        c.Config,
		listenAddr: c.Config.ListenAddr,
		logger:     c.Config.Logger,

		baseURI:    c.BaseURI,
		pathPrefix: c.PathPrefix,

		sso:         c.SSO,
		logout:      c.Logout,
		authorities: c.Authorities,
		backend:     c.Backend,

		encryption: c.EncryptionManager,
		stateToken: c.StateTokenSigner,

		tgtCookieName:     c.TGTCookieName,
		sessionCookieName: c.SessionCookieName,
	}
	if s.tgtCookieName == "" {
		s.tgtCookieName = DefaultTGTCookieName
	}
	if s.sessionCookieName == "" {
		s.sessionCookieName = DefaultSessionCookieName
	}

	if len(c.EncryptionSecret) > 0 {
		s.encryptionSecret = c.EncryptionSecret
		recipient := jose.Recipient{
			Algorithm: jose.A256GCMKW,
			KeyID:     "",
			Key:       c.EncryptionSecret,
		}
		encrypter, err := jose.NewEncrypter(
			jose.A256GCM,
			recipient,
			nil,
		)
		if err != nil {
			return nil, err
		}
		s.encrypter = encrypter
	}

	s.logoutStateCors = cors.New(cors.Options{
		AllowedOrigins: c.LogoutStateAllowedOrigins,
	})
	s.logoutStateOrigins = make(map[string]bool)
	for _, origin := range c.LogoutStateAllowedOrigins {
		s.logoutStateOrigins[origin] = true
	}

	router := mux.NewRouter()
	s.AddRoutes(router)
	s.mux = router

	return s, nil
}

// AddRoutes registers the accociated server's routes on the provided router.
func (s *Server) AddRoutes(router *mux.Router) {
	r := router
	if s.pathPrefix != "" {
		r = router.PathPrefix(s.pathPrefix).Subrouter()
	}

	r.HandleFunc("/health-check", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/sso/authenticate", s.handleAuthenticate).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/sso/saml2/acs", s.handleSAML2Acs).Methods(http.MethodPost)
	r.HandleFunc("/sso/saml2/slo", s.handleLogoutResume).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/sso/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/sso/logout/state", s.logoutStateCors.Handler(http.HandlerFunc(s.handleLogoutState))).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/sso/logout/force", s.handleLogoutForce).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/sso/logout/resume", s.handleLogoutResume).Methods(http.MethodGet, http.MethodPost)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(rw, req)
}

// HealthCheckHandler returns 200 OK when the server health is fine.
func (s *Server) HealthCheckHandler(rw http.ResponseWriter, req *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

// Serve starts the accociated server and blocks until the provided context
// is cancelled or a stop signal is received.
func (s *Server) Serve(ctx context.Context) error {
	serveCtx, serveCtxCancel := context.WithCancel(ctx)
	defer serveCtxCancel()

	logger := s.logger

	errCh := make(chan error, 2)
	signalCh := make(chan os.Signal, 1)

	srv := &http.Server{
		Addr:    s.listenAddr,
		Handler: s,
	}

	go func() {
		logger.WithField("listenAddr", s.listenAddr).Infoln("ready to handle requests")
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	var err error
	select {
	case err = <-errCh:
		// breaks
	case reason := <-signalCh:
		logger.WithField("signal", reason).Warnln("received signal")
		// breaks
	case <-serveCtx.Done():
		// breaks
	}

	logger.Infoln("clean server shutdown start")
	shutDownCtx, shutDownCtxCancel := context.WithTimeout(ctx, 10*time.Second)
	if shutdownErr := srv.Shutdown(shutDownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Warn("clean server shutdown failed")
	}
	shutDownCtxCancel()

	s.sso.Stop()
	s.logout.Stop()

	return err
}
