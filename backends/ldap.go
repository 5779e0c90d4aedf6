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

package backends

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/ldap.v2"

	"stash.kopano.io/kc/kssobridge/identity"
)

const ldapBackendName = "ldap"

// Known LDAP attribute descriptors.
const (
	ldapAttributeLogin        = "uid"
	ldapAttributeOrganization = "o"
)

// LDAPBackend is a Backend which connects to a LDAP server for logon and
// user resolution.
type LDAPBackend struct {
	addr         string
	isTLS        bool
	bindDN       string
	bindPassword string

	baseDN       string
	scope        int
	searchFilter string

	loginAttribute        string
	organizationAttribute string
	userAttributes        []string

	logger    logrus.FieldLogger
	dialer    *net.Dialer
	tlsConfig *tls.Config

	timeout int
	limiter *rate.Limiter
}

// LDAPBackendSettings bundle the configuration of a LDAPBackend.
type LDAPBackendSettings struct {
	URI          string
	BindDN       string
	BindPassword string

	BaseDN string
	Scope  string
	Filter string

	LoginAttribute        string
	OrganizationAttribute string
	UserAttributes        []string

	TLSConfig *tls.Config

	Logger logrus.FieldLogger
}

// NewLDAPBackend creates a new LDAPBackend from the provided settings.
func NewLDAPBackend(s *LDAPBackendSettings) (*LDAPBackend, error) {
	var err error
	var scope int
	var uri *url.URL
	for {
		if s.URI == "" {
			err = fmt.Errorf("server must not be empty")
			break
		}
		uri, err = url.Parse(s.URI)
		if err != nil {
			break
		}

		if s.BindDN == "" && s.BindPassword != "" {
			err = fmt.Errorf("bind DN must not be empty when bind password is given")
			break
		}
		if s.BaseDN == "" {
			err = fmt.Errorf("base DN must not be empty")
			break
		}
		switch s.Scope {
		case "sub", "":
			scope = ldap.ScopeWholeSubtree
		case "one":
			scope = ldap.ScopeSingleLevel
		case "base":
			scope = ldap.ScopeBaseObject
		default:
			err = fmt.Errorf("unknown scope value: %v, must be one of sub, one or base", s.Scope)
		}
		if err != nil {
			break
		}

		break
	}
	if err != nil {
		return nil, fmt.Errorf("ldap backend %v", err)
	}

	filter := s.Filter
	if filter == "" {
		filter = "(objectClass=inetOrgPerson)"
	}

	loginAttribute := s.LoginAttribute
	if loginAttribute == "" {
		loginAttribute = ldapAttributeLogin
	}
	organizationAttribute := s.OrganizationAttribute
	if organizationAttribute == "" {
		organizationAttribute = ldapAttributeOrganization
	}

	userAttributes := []string{loginAttribute, organizationAttribute}
	userAttributes = append(userAttributes, s.UserAttributes...)

	addr := uri.Host
	isTLS := false
	switch uri.Scheme {
	case "":
		uri.Scheme = "ldap"
		fallthrough
	case "ldap":
		if uri.Port() == "" {
			addr += ":389"
		}
	case "ldaps":
		if uri.Port() == "" {
			addr += ":636"
		}
		isTLS = true
	default:
		return nil, fmt.Errorf("ldap backend invalid URI scheme: %v", uri.Scheme)
	}

	b := &LDAPBackend{
		addr:         addr,
		isTLS:        isTLS,
		bindDN:       s.BindDN,
		bindPassword: s.BindPassword,

		baseDN:       s.BaseDN,
		scope:        scope,
		searchFilter: fmt.Sprintf("(&%s(%s=%%s))", filter, loginAttribute),

		loginAttribute:        loginAttribute,
		organizationAttribute: organizationAttribute,
		userAttributes:        userAttributes,

		logger: s.Logger,
		dialer: &net.Dialer{
			Timeout:   ldap.DefaultTimeout,
			DualStack: true,
		},
		tlsConfig: s.TLSConfig,

		timeout: 60,
		limiter: rate.NewLimiter(100, 200),
	}

	b.logger.WithField("ldap", fmt.Sprintf("%s://%s", uri.Scheme, addr)).Infoln("ldap backend set up")

	return b, nil
}

// RunWithContext implements the Backend interface.
func (b *LDAPBackend) RunWithContext(ctx context.Context) error {
	return nil
}

// Logon implements the Backend interface. The password is verified by
// binding to the LDAP server as the resolved user.
func (b *LDAPBackend) Logon(ctx context.Context, username string, password string) (bool, identity.User, error) {
	l, err := b.connect(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("ldap backend logon connect error: %v", err)
	}
	defer l.Close()

	entry, err := b.searchUsername(l, username)
	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("ldap backend logon search error: %v", err)
	}
	if entry.GetAttributeValue(b.loginAttribute) != username {
		return false, nil, fmt.Errorf("ldap backend logon search returned wrong user")
	}

	// Bind as the user to verify the password.
	err = l.Bind(entry.DN, password)
	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("ldap backend logon error: %v", err)
	}

	return true, b.newUser(entry), nil
}

// ResolveUserByUsername implements the Backend interface.
func (b *LDAPBackend) ResolveUserByUsername(ctx context.Context, username string) (identity.UserWithUsername, error) {
	l, err := b.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("ldap backend resolve connect error: %v", err)
	}
	defer l.Close()

	entry, err := b.searchUsername(l, username)
	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ldap backend resolve search error: %v", err)
	}
	if entry.GetAttributeValue(b.loginAttribute) != username {
		return nil, fmt.Errorf("ldap backend resolve search returned wrong user")
	}

	return b.newUser(entry), nil
}

// Name implements the Backend interface.
func (b *LDAPBackend) Name() string {
	return ldapBackendName
}

func (b *LDAPBackend) newUser(entry *ldap.Entry) *User {
	attributes := make(map[string][]string)
	for _, attribute := range entry.Attributes {
		if len(attribute.Values) == 0 {
			continue
		}
		attributes[attribute.Name] = attribute.Values
	}

	return NewUser(
		entry.DN,
		entry.GetAttributeValue(b.loginAttribute),
		entry.GetAttributeValue(b.organizationAttribute),
		attributes,
	)
}

func (b *LDAPBackend) connect(parentCtx context.Context) (*ldap.Conn, error) {
	// The timeout covers both waiting for a limiter slot and establishing
	// the connection.
	ctx, cancel := context.WithTimeout(parentCtx, time.Duration(b.timeout)*time.Second)
	defer cancel()

	err := b.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	c, err := b.dialer.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorNetwork, err)
	}

	var l *ldap.Conn
	if b.isTLS {
		sc := tls.Client(c, b.tlsConfig)
		err = sc.Handshake()
		if err != nil {
			c.Close()
			return nil, ldap.NewError(ldap.ErrorNetwork, err)
		}
		l = ldap.NewConn(sc, true)
	} else {
		l = ldap.NewConn(c, false)
	}

	l.Start()

	// Bind with the general user which is preferably read only.
	if b.bindDN != "" {
		err = l.Bind(b.bindDN, b.bindPassword)
		if err != nil {
			return nil, err
		}
	}

	return l, nil
}

func (b *LDAPBackend) searchUsername(l *ldap.Conn, username string) (*ldap.Entry, error) {
	searchRequest := ldap.NewSearchRequest(
		b.baseDN,
		b.scope, ldap.NeverDerefAliases, 1, b.timeout, false,
		fmt.Sprintf(b.searchFilter, username),
		b.userAttributes,
		nil,
	)
	sr, err := l.Search(searchRequest)
	if err != nil {
		return nil, err
	}

	switch len(sr.Entries) {
	case 0:
		return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, err)
	case 1:
		return sr.Entries[0], nil
	default:
		return nil, fmt.Errorf("too many entries returned")
	}
}
