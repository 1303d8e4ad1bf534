/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridia/vci/pkg/metadata"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	clientMetadata := &metadata.Client{
		ClientName:   "Example Wallet",
		RedirectURIs: []string{"https://wallet.example.com/cb"},
		GrantTypes:   []string{metadata.GrantTypeAuthorizationCode},
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		token := obtainToken(t, f)

		resp, err := f.svc.Register(ctx, &RegistrationRequest{
			CredentialIssuer: testIssuerID,
			AccessToken:      token.AccessToken,
			ClientMetadata:   clientMetadata,
		})
		require.NoError(t, err)
		require.Equal(t, "registered-client", resp.ClientMetadata.ClientID)
		require.NotZero(t, resp.ClientMetadata.ClientIDIssuedAt)
	})

	t.Run("unknown access token", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Register(ctx, &RegistrationRequest{
			CredentialIssuer: testIssuerID,
			AccessToken:      "no-such-token",
			ClientMetadata:   clientMetadata,
		})
		require.True(t, IsCode(err, ErrorCodeServerError))
	})

	t.Run("expired access token", func(t *testing.T) {
		f := newFixture(t)
		token := obtainToken(t, f)

		state, err := f.svc.getState(ctx, token.AccessToken)
		require.NoError(t, err)

		state.ExpiresAt = time.Now().Add(-time.Second)
		b, err := state.Marshal()
		require.NoError(t, err)

		f.store.data[token.AccessToken] = storedEntry{
			value:     b,
			expiresAt: time.Now().Add(time.Minute),
		}

		_, err = f.svc.Register(ctx, &RegistrationRequest{
			CredentialIssuer: testIssuerID,
			AccessToken:      token.AccessToken,
			ClientMetadata:   clientMetadata,
		})
		require.True(t, IsCode(err, ErrorCodeInvalidRequest))
	})

	t.Run("missing client_metadata", func(t *testing.T) {
		f := newFixture(t)
		token := obtainToken(t, f)

		_, err := f.svc.Register(ctx, &RegistrationRequest{
			CredentialIssuer: testIssuerID,
			AccessToken:      token.AccessToken,
		})
		require.True(t, IsCode(err, ErrorCodeInvalidRequest))
	})

	t.Run("registrar failure", func(t *testing.T) {
		f := newFixture(t)
		token := obtainToken(t, f)

		f.registrar.err = errors.New("registry unavailable")

		_, err := f.svc.Register(ctx, &RegistrationRequest{
			CredentialIssuer: testIssuerID,
			AccessToken:      token.AccessToken,
			ClientMetadata:   clientMetadata,
		})
		require.True(t, IsCode(err, ErrorCodeServerError))
	})
}
