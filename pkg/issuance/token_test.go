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

func authorizeForTest(t *testing.T, f *fixture) string {
	t.Helper()

	resp, err := f.svc.Authorize(context.Background(), testAuthorizationRequest())
	require.NoError(t, err)

	return resp.Code
}

func testTokenRequest(code string) *TokenRequest {
	return &TokenRequest{
		CredentialIssuer: testIssuerID,
		ClientID:         testClientID,
		GrantType:        metadata.GrantTypeAuthorizationCode,
		Code:             code,
		CodeVerifier:     testCodeVerifier,
		RedirectURI:      testRedirectURI,
	}
}

func TestToken(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		resp, err := f.svc.Token(ctx, testTokenRequest(code))
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.Equal(t, TokenTypeBearer, resp.TokenType)
		require.Equal(t, int64(ExpireAccess.Seconds()), resp.ExpiresIn)
		require.NotEmpty(t, resp.CNonce)
		require.Equal(t, int64(ExpireNonce.Seconds()), resp.CNonceExpiresIn)
		require.Len(t, resp.AuthorizationDetails, 1)
		require.Equal(t, []string{"employee-id-1"},
			resp.AuthorizationDetails[0].CredentialIdentifiers)

		state, err := f.svc.getState(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, StageValidated, state.Stage)
		require.Equal(t, testSubjectID, state.SubjectID)
		require.Equal(t, resp.CNonce, state.Token.CNonce)
	})

	t.Run("code is single use", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		_, err := f.svc.Token(ctx, testTokenRequest(code))
		require.NoError(t, err)

		_, err = f.svc.Token(ctx, testTokenRequest(code))
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t)

		req := testTokenRequest("")

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeInvalidRequest))
	})

	t.Run("unknown grant type", func(t *testing.T) {
		f := newFixture(t)

		req := testTokenRequest("some-code")
		req.GrantType = "client_credentials"

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeUnsupportedGrantType))
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Token(ctx, testTokenRequest("no-such-code"))
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("expired code", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		entry := f.store.data[code]
		entry.expiresAt = time.Now().Add(-time.Second)
		f.store.data[code] = entry

		_, err := f.svc.Token(ctx, testTokenRequest(code))
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("client_id mismatch", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		req := testTokenRequest(code)
		req.ClientID = "another-client"

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("redirect_uri mismatch", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		req := testTokenRequest(code)
		req.RedirectURI = "https://attacker.example.com/cb"

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("missing code_verifier", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		req := testTokenRequest(code)
		req.CodeVerifier = ""

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeAccessDenied))
	})

	t.Run("wrong code_verifier", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		req := testTokenRequest(code)
		req.CodeVerifier = "WRONGWRONGWRONGWRONGWRONGWRONGWRONGWRONGWRONG"

		_, err := f.svc.Token(ctx, req)
		require.True(t, IsCode(err, ErrorCodeAccessDenied))
	})

	t.Run("unknown authorization server", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		f.metadata.serverErr = errors.New("no such server")

		_, err := f.svc.Token(ctx, testTokenRequest(code))
		require.True(t, IsCode(err, ErrorCodeInvalidRequest))
	})

	t.Run("grant not supported by server", func(t *testing.T) {
		f := newFixture(t)
		code := authorizeForTest(t, f)

		f.metadata.server.GrantTypesSupported = []string{metadata.GrantTypePreAuthorizedCode}

		_, err := f.svc.Token(ctx, testTokenRequest(code))
		require.True(t, IsCode(err, ErrorCodeUnsupportedGrantType))
	})
}

func seedPreAuthorizedCode(t *testing.T, f *fixture, txCode string) string {
	t.Helper()

	state := &State{
		Version:   StateVersion,
		ExpiresAt: time.Now().Add(ExpireAuthorized),
		SubjectID: testSubjectID,
		Stage:     StageAuthorized,
		Authorization: &AuthorizationState{
			TxCode: txCode,
			Details: []*DetailItem{
				{
					AuthorizationDetail: &AuthorizationDetail{
						Type:                      AuthorizationDetailTypeOpenIDCredential,
						CredentialConfigurationID: testConfigurationID,
					},
					CredentialConfigurationID: testConfigurationID,
					CredentialIdentifiers:     []string{"employee-id-1"},
				},
			},
		},
	}

	code := generateToken()
	require.NoError(t, f.svc.putState(context.Background(), code, state))

	return code
}

func TestToken_PreAuthorizedCode(t *testing.T) {
	ctx := context.Background()

	t.Run("success with anonymous client", func(t *testing.T) {
		f := newFixture(t)
		code := seedPreAuthorizedCode(t, f, "4081")

		resp, err := f.svc.Token(ctx, &TokenRequest{
			CredentialIssuer:  testIssuerID,
			GrantType:         metadata.GrantTypePreAuthorizedCode,
			PreAuthorizedCode: code,
			TxCode:            "4081",
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.CNonce)
	})

	t.Run("missing pre-authorized_code", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Token(ctx, &TokenRequest{
			CredentialIssuer: testIssuerID,
			GrantType:        metadata.GrantTypePreAuthorizedCode,
		})
		require.True(t, IsCode(err, ErrorCodeInvalidRequest))
	})

	t.Run("wrong tx_code", func(t *testing.T) {
		f := newFixture(t)
		code := seedPreAuthorizedCode(t, f, "4081")

		_, err := f.svc.Token(ctx, &TokenRequest{
			CredentialIssuer:  testIssuerID,
			GrantType:         metadata.GrantTypePreAuthorizedCode,
			PreAuthorizedCode: code,
			TxCode:            "0000",
		})
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("unsolicited tx_code", func(t *testing.T) {
		f := newFixture(t)
		code := seedPreAuthorizedCode(t, f, "")

		_, err := f.svc.Token(ctx, &TokenRequest{
			CredentialIssuer:  testIssuerID,
			GrantType:         metadata.GrantTypePreAuthorizedCode,
			PreAuthorizedCode: code,
			TxCode:            "4081",
		})
		require.True(t, IsCode(err, ErrorCodeInvalidGrant))
	})

	t.Run("anonymous access not supported", func(t *testing.T) {
		f := newFixture(t)
		code := seedPreAuthorizedCode(t, f, "")

		f.metadata.server.PreAuthorizedGrantAnonymousAccessSupported = false

		_, err := f.svc.Token(ctx, &TokenRequest{
			CredentialIssuer:  testIssuerID,
			GrantType:         metadata.GrantTypePreAuthorizedCode,
			PreAuthorizedCode: code,
		})
		require.True(t, IsCode(err, ErrorCodeInvalidClient))
	})
}
