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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"stash.kopano.io/kc/kssobridge/authorities"
	"stash.kopano.io/kc/kssobridge/backends"
	"stash.kopano.io/kc/kssobridge/bootstrap"
	"stash.kopano.io/kc/kssobridge/config"
	"stash.kopano.io/kc/kssobridge/encryption"
	"stash.kopano.io/kc/kssobridge/server"
	"stash.kopano.io/kc/kssobridge/signing"
	"stash.kopano.io/kc/kssobridge/sso"
	"stash.kopano.io/kc/kssobridge/sso/logout"
	"stash.kopano.io/kc/kssobridge/version"
)

const defaultListenAddr = "127.0.0.1:8778"

func commandServe() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve <backend> [...args]",
		Short: "Start server and listen for requests",
		Run: func(cmd *cobra.Command, args []string) {
			if err := serve(cmd, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("listen", envOrDefault("KSSOBRIDGE_LISTEN", defaultListenAddr), "TCP listen address")
	serveCmd.Flags().String("iss", "", "Issuer URL of this service, must be reachable by user agents")
	serveCmd.Flags().String("uri-base-path", "", "Custom base path for URI endpoints")
	serveCmd.Flags().String("secret", "", fmt.Sprintf("Full path to a file containing the encryption secret (length must be %d bytes)", encryption.KeySize))
	serveCmd.Flags().Bool("insecure", false, "Disable TLS certificate and hostname validation")
	serveCmd.Flags().StringArray("trusted-proxy", nil, "Trusted proxy IP or IP network (can be used multiple times)")
	serveCmd.Flags().String("authentication-registration-conf", "", "Path to a authentication-registration.yaml configuration file")
	serveCmd.Flags().String("requestor-registration-conf", "", "Path to a requestor-registration.yaml configuration file")
	serveCmd.Flags().String("authority-registration-conf", "", "Path to a authority-registration.yaml configuration file")
	serveCmd.Flags().String("nameid-format", "", "NameID formatter (persistent, transient, attribute or override)")
	serveCmd.Flags().String("nameid-conf", "", "Path to a nameid.yaml configuration file")
	serveCmd.Flags().Uint64("session-duration", 0, "Duration in seconds until authentication sessions expire")
	serveCmd.Flags().Uint64("tgt-duration", 0, "Duration in seconds until ticket granting tickets expire")
	serveCmd.Flags().Uint64("state-token-duration", 0, "Duration in seconds until logout state tokens expire")
	serveCmd.Flags().Bool("disable-sso", false, "Disable single sign-on, every authentication runs interactively")
	serveCmd.Flags().Bool("logout-confirm", false, "Require logout confirmation when other requestors are still signed in")
	serveCmd.Flags().StringArray("logout-state-allowed-origin", nil, "Origin allowed to poll the logout state endpoint (can be used multiple times)")
	serveCmd.Flags().Bool("log-timestamp", true, "Prefix each log line with timestamp")
	serveCmd.Flags().String("log-level", "info", "Log level (one of panic, fatal, error, warn, info or debug)")

	return serveCmd
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logTimestamp, _ := cmd.Flags().GetBool("log-timestamp")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(!logTimestamp, logLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %v", err)
	}
	logger.Debugln("serve start")

	cfg := &config.Config{
		Logger: logger,
	}

	bsConf := &bootstrap.Config{}
	if len(args) > 0 {
		bsConf.Backend = args[0]
	}
	bsConf.Listen, _ = cmd.Flags().GetString("listen")
	bsConf.Iss, _ = cmd.Flags().GetString("iss")
	bsConf.URIBasePath, _ = cmd.Flags().GetString("uri-base-path")
	bsConf.EncryptionSecretFile, _ = cmd.Flags().GetString("secret")
	bsConf.Insecure, _ = cmd.Flags().GetBool("insecure")
	bsConf.TrustedProxy, _ = cmd.Flags().GetStringArray("trusted-proxy")
	bsConf.AuthenticationRegistrationConf, _ = cmd.Flags().GetString("authentication-registration-conf")
	bsConf.RequestorRegistrationConf, _ = cmd.Flags().GetString("requestor-registration-conf")
	bsConf.AuthorityRegistrationConf, _ = cmd.Flags().GetString("authority-registration-conf")
	bsConf.NameIDFormat, _ = cmd.Flags().GetString("nameid-format")
	bsConf.NameIDConf, _ = cmd.Flags().GetString("nameid-conf")
	bsConf.SessionDurationSeconds, _ = cmd.Flags().GetUint64("session-duration")
	bsConf.TGTDurationSeconds, _ = cmd.Flags().GetUint64("tgt-duration")
	bsConf.StateTokenDurationSeconds, _ = cmd.Flags().GetUint64("state-token-duration")
	bsConf.DisableSingleSignon, _ = cmd.Flags().GetBool("disable-sso")
	bsConf.LogoutConfirm, _ = cmd.Flags().GetBool("logout-confirm")
	bsConf.LogoutStateAllowedOrigins, _ = cmd.Flags().GetStringArray("logout-state-allowed-origin")
	bsConf.LogoutStateAllowedOrigins = append(bsConf.LogoutStateAllowedOrigins, listEnvArg("KSSOBRIDGE_LOGOUT_STATE_ALLOWED_ORIGINS")...)

	bs, err := bootstrap.Boot(ctx, bsConf, cfg)
	if err != nil {
		return err
	}

	mgrs := bs.Managers()

	srv, err := server.NewServer(&server.Config{
		Config: bs.Config(),

		BaseURI:    bs.BaseURI(),
		PathPrefix: bs.PathPrefix(),

		SSO:         mgrs.Must("sso").(*sso.Service),
		Logout:      mgrs.Must("logout").(*logout.Profile),
		Authorities: mgrs.Must("authorities").(*authorities.Registry),
		Backend:     mgrs.Must("backend").(backends.Backend),

		EncryptionManager: mgrs.Must("encryption").(*encryption.Manager),
		EncryptionSecret:  bs.EncryptionSecret(),
		StateTokenSigner:  mgrs.Must("statetoken").(*signing.StateTokenSigner),

		LogoutStateAllowedOrigins: bs.LogoutStateAllowedOrigins(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
	}).Infoln("serve started")

	return srv.Serve(ctx)
}
