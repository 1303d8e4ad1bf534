/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/metadata"
)

// TokenTypeBearer is the token_type of every issued access token.
const TokenTypeBearer = "Bearer"

// Token exchanges an authorization code or pre-authorized code for an access
// token and the initial proof nonce. The presented code is consumed whether
// or not the exchange succeeds past state retrieval.
func (s *Service) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	key, err := authCodeKey(req)
	if err != nil {
		return nil, err
	}

	// Absent, expired and malformed codes are indistinguishable to the
	// client, per RFC 6749.
	state, err := s.getState(ctx, key)
	if err != nil {
		logger.Debugc(ctx, "token state retrieval failed", logfields.WithGrantType(req.GrantType))

		return nil, NewInvalidGrantError(fmt.Errorf("the authorization code is invalid"))
	}

	return run[*TokenRequest, *TokenResponse](ctx, s, &tokenOperation{
		svc:      s,
		state:    state,
		stateKey: key,
	}, req)
}

// authCodeKey selects the state key for the requested grant type.
func authCodeKey(req *TokenRequest) (string, error) {
	switch req.GrantType {
	case metadata.GrantTypeAuthorizationCode:
		if req.Code == "" {
			return "", NewInvalidRequestError(fmt.Errorf("missing code"))
		}

		return req.Code, nil
	case metadata.GrantTypePreAuthorizedCode:
		if req.PreAuthorizedCode == "" {
			return "", NewInvalidRequestError(fmt.Errorf("missing pre-authorized_code"))
		}

		return req.PreAuthorizedCode, nil
	default:
		return "", NewUnsupportedGrantTypeError(
			fmt.Errorf("grant_type %q is not supported", req.GrantType))
	}
}

type tokenOperation struct {
	svc      *Service
	state    *State
	stateKey string
}

func (o *tokenOperation) callbackID() string {
	return o.state.CallbackID
}

func (o *tokenOperation) verify(ctx context.Context, req *TokenRequest) error {
	server, err := o.svc.metadata.Server(ctx, req.CredentialIssuer)
	if err != nil {
		return NewInvalidRequestError(fmt.Errorf("unknown authorization server: %w", err))
	}

	if !server.SupportsGrantType(req.GrantType) {
		return NewUnsupportedGrantTypeError(
			fmt.Errorf("grant_type %q is not supported by the authorization server", req.GrantType))
	}

	auth := o.state.Authorization
	if auth == nil || o.state.Stage != StageAuthorized {
		return NewServerError(fmt.Errorf("authorization state not set"))
	}

	switch req.GrantType {
	case metadata.GrantTypeAuthorizationCode:
		return o.verifyAuthorizationCode(req, auth)
	case metadata.GrantTypePreAuthorizedCode:
		return o.verifyPreAuthorizedCode(req, server, auth)
	default:
		return NewUnsupportedGrantTypeError(
			fmt.Errorf("grant_type %q is not supported", req.GrantType))
	}
}

func (o *tokenOperation) verifyAuthorizationCode(req *TokenRequest, auth *AuthorizationState) error {
	if req.ClientID == "" || req.ClientID != auth.ClientID {
		return NewInvalidGrantError(
			fmt.Errorf("client_id does not match the authorization request"))
	}

	if req.RedirectURI != auth.RedirectURI {
		return NewInvalidGrantError(
			fmt.Errorf("redirect_uri does not match the authorization request"))
	}

	if req.CodeVerifier == "" {
		return NewAccessDeniedError(fmt.Errorf("missing code_verifier"))
	}

	digest := sha256.Sum256([]byte(req.CodeVerifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])

	if subtle.ConstantTimeCompare([]byte(challenge), []byte(auth.CodeChallenge)) != 1 {
		return NewAccessDeniedError(fmt.Errorf("code_verifier is invalid"))
	}

	return nil
}

func (o *tokenOperation) verifyPreAuthorizedCode(req *TokenRequest, server *metadata.Server,
	auth *AuthorizationState) error {
	if req.ClientID == "" && !server.PreAuthorizedGrantAnonymousAccessSupported {
		return NewInvalidClientError(
			fmt.Errorf("anonymous access is not supported by the authorization server"))
	}

	if req.TxCode != auth.TxCode {
		return NewInvalidGrantError(fmt.Errorf("tx_code is invalid"))
	}

	return nil
}

func (o *tokenOperation) process(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	// Single use: the code stops working before the token starts.
	if err := o.svc.store.Purge(ctx, o.stateKey); err != nil {
		return nil, NewServerError(fmt.Errorf("purge authorization code: %w", err))
	}

	auth := o.state.Authorization

	accessToken := generateToken()
	cNonce := generateToken()
	now := time.Now()

	state := &State{
		Version:    StateVersion,
		ExpiresAt:  now.Add(ExpireAccess),
		SubjectID:  o.state.SubjectID,
		CallbackID: o.state.CallbackID,
		Stage:      StageValidated,
		Token: &TokenState{
			AccessToken:     accessToken,
			CNonce:          cNonce,
			CNonceExpiresAt: now.Add(ExpireNonce),
			Details:         auth.Details,
			Scope:           auth.Scope,
		},
	}

	if err := o.svc.putState(ctx, accessToken, state); err != nil {
		return nil, NewServerError(err)
	}

	logger.Debugc(ctx, "access token issued", logfields.WithClientID(req.ClientID),
		logfields.WithGrantType(req.GrantType), logfields.WithSubjectID(o.state.SubjectID))

	return &TokenResponse{
		AccessToken:     accessToken,
		TokenType:       TokenTypeBearer,
		ExpiresIn:       int64(ExpireAccess.Seconds()),
		CNonce:          cNonce,
		CNonceExpiresIn: int64(ExpireNonce.Seconds()),
		Scope: strings.Join(lo.Map(auth.Scope, func(item *ScopeItem, _ int) string {
			return item.Item
		}), " "),
		AuthorizationDetails: lo.Map(auth.Details, func(item *DetailItem, _ int) *TokenAuthorizationDetail {
			return &TokenAuthorizationDetail{
				AuthorizationDetail:   item.AuthorizationDetail,
				CredentialIdentifiers: item.CredentialIdentifiers,
			}
		}),
	}, nil
}
