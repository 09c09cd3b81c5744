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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestHeaderAuthenticator(t *testing.T) {
	auth := NewHeaderAuthenticator()
	ctx := context.Background()

	p, err := auth.AuthenticateGRPC(ctx, metadata.Pairs(UserMetadataKey, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User)
	assert.Equal(t, "header", p.Method)

	p, err = auth.AuthenticateGRPC(ctx, metadata.MD{})
	require.NoError(t, err)
	assert.Equal(t, AnonymousUser, p.User)
}

func TestTokenAuthenticator(t *testing.T) {
	auth := NewTokenAuthenticator(map[string]string{"s3cret": "bob"})
	ctx := context.Background()

	p, err := auth.AuthenticateGRPC(ctx, metadata.Pairs(AuthorizationMetadataKey, "Bearer s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "bob", p.User)

	_, err = auth.AuthenticateGRPC(ctx, metadata.MD{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = auth.AuthenticateGRPC(ctx, metadata.Pairs(AuthorizationMetadataKey, "Basic s3cret"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.AuthenticateGRPC(ctx, metadata.Pairs(AuthorizationMetadataKey, "Bearer wrong"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompositeAuthenticator(t *testing.T) {
	auth := NewCompositeAuthenticator(
		NewTokenAuthenticator(map[string]string{"t": "svc"}),
		NewHeaderAuthenticator(),
	)
	ctx := context.Background()

	p, err := auth.AuthenticateGRPC(ctx, metadata.Pairs(AuthorizationMetadataKey, "Bearer t"))
	require.NoError(t, err)
	assert.Equal(t, "svc", p.User)

	p, err = auth.AuthenticateGRPC(ctx, metadata.Pairs(UserMetadataKey, "carol"))
	require.NoError(t, err)
	assert.Equal(t, "carol", p.User)

	_, err = NewCompositeAuthenticator().AuthenticateGRPC(ctx, metadata.MD{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithPrincipal(context.Background(), &Principal{User: "dave"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "dave", p.User)
}
