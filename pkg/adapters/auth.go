// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package adapters

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"
)

const (
	// UserMetadataKey carries the Redfish user name on every RPC.
	UserMetadataKey = "x-redfish-user"

	// AuthorizationMetadataKey carries an optional bearer token.
	AuthorizationMetadataKey = "authorization"

	// AnonymousUser is reported when a request names no user.
	AnonymousUser = "anonymous"
)

var (
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingCredentials is returned when required credentials are missing.
	ErrMissingCredentials = errors.New("missing credentials")
)

// Principal is the authenticated Redfish user behind a request.
type Principal struct {
	// User is the Redfish user name used for ownership of new paths.
	User string

	// Method records how the user was established ("header", "token").
	Method string
}

// Authenticator establishes the principal of a gRPC request.
type Authenticator interface {
	AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Principal, error)
}

// HeaderAuthenticator trusts the user name sent by the client, as the
// Redfish client library does.
type HeaderAuthenticator struct{}

// NewHeaderAuthenticator creates a new header authenticator.
func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

// AuthenticateGRPC returns the user named in the request metadata.
func (a *HeaderAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Principal, error) {
	user := firstValue(md, UserMetadataKey)
	if user == "" {
		user = AnonymousUser
	}
	return &Principal{User: user, Method: "header"}, nil
}

// TokenAuthenticator maps shared bearer tokens to users.
type TokenAuthenticator struct {
	tokens map[string]string
}

// NewTokenAuthenticator creates an authenticator for the given token to
// user table.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	copied := make(map[string]string, len(tokens))
	for token, user := range tokens {
		copied[token] = user
	}
	return &TokenAuthenticator{tokens: copied}
}

// AuthenticateGRPC validates an "authorization: Bearer <token>" entry.
func (a *TokenAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Principal, error) {
	header := firstValue(md, AuthorizationMetadataKey)
	if header == "" {
		return nil, ErrMissingCredentials
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, ErrUnauthorized
	}
	for known, user := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return &Principal{User: user, Method: "token"}, nil
		}
	}
	return nil, ErrUnauthorized
}

// CompositeAuthenticator tries each authenticator in order and returns the
// first success.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator.
func NewCompositeAuthenticator(authenticators ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: authenticators}
}

// AuthenticateGRPC returns the first successful principal.
func (a *CompositeAuthenticator) AuthenticateGRPC(ctx context.Context, md metadata.MD) (*Principal, error) {
	lastErr := ErrUnauthorized
	for _, auth := range a.authenticators {
		principal, err := auth.AuthenticateGRPC(ctx, md)
		if err == nil {
			return principal, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type principalKey struct{}

// ContextWithPrincipal attaches a principal to ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached to ctx, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
