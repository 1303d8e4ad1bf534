/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/metadata"
)

const (
	minCodeChallengeLen = 43
	maxCodeChallengeLen = 128
)

// Authorize handles an authorization request for the authorization_code
// grant and mints a single-use authorization code.
func (s *Service) Authorize(ctx context.Context, req *AuthorizationRequest) (*AuthorizationResponse, error) {
	issuer, err := s.metadata.Issuer(ctx, req.CredentialIssuer)
	if err != nil {
		return nil, NewInvalidClientError(fmt.Errorf("invalid credential issuer: %w", err))
	}

	return run[*AuthorizationRequest, *AuthorizationResponse](ctx, s, &authorizeOperation{
		svc:    s,
		issuer: issuer,
	}, req)
}

type authorizeOperation struct {
	svc    *Service
	issuer *metadata.Issuer

	details []*DetailItem
	scope   []*ScopeItem
}

func (o *authorizeOperation) callbackID() string {
	return ""
}

//nolint:gocognit,cyclop
func (o *authorizeOperation) verify(ctx context.Context, req *AuthorizationRequest) error {
	logger.Debugc(ctx, "authorize verify", logfields.WithClientID(req.ClientID),
		logfields.WithIssuerID(req.CredentialIssuer))

	client, err := o.svc.metadata.Client(ctx, req.ClientID)
	if err != nil {
		return NewInvalidClientError(fmt.Errorf("invalid client_id: %w", err))
	}

	server, err := o.svc.metadata.Server(ctx, req.CredentialIssuer)
	if err != nil {
		return NewServerError(fmt.Errorf("unknown authorization server: %w", err))
	}

	if !client.SupportsGrantType(metadata.GrantTypeAuthorizationCode) {
		return NewInvalidClientError(
			fmt.Errorf("client is not authorized for the authorization_code grant"))
	}

	if !server.SupportsGrantType(metadata.GrantTypeAuthorizationCode) {
		return NewInvalidRequestError(
			fmt.Errorf("authorization_code grant is not supported by the authorization server"))
	}

	if req.SubjectID == "" {
		return NewInvalidRequestError(fmt.Errorf("missing subject_id"))
	}

	if err = o.verifyIssuerState(ctx, req); err != nil {
		return err
	}

	if len(req.AuthorizationDetails) == 0 && strings.TrimSpace(req.Scope) == "" {
		return NewInvalidRequestError(
			fmt.Errorf("no credentials requested in authorization_details or scope"))
	}

	for _, detail := range req.AuthorizationDetails {
		item, err := o.verifyDetail(detail)
		if err != nil {
			return err
		}

		o.details = append(o.details, item)
	}

	if err = o.verifyScope(req.Scope); err != nil {
		return err
	}

	if err = verifyRedirectURI(req.RedirectURI, client); err != nil {
		return err
	}

	if !lo.Contains(client.ResponseTypes, req.ResponseType) {
		return NewUnsupportedResponseTypeError(
			fmt.Errorf("response_type %q is not registered for the client", req.ResponseType))
	}

	if !lo.Contains(server.ResponseTypesSupported, req.ResponseType) {
		return NewUnsupportedResponseTypeError(
			fmt.Errorf("response_type %q is not supported by the authorization server", req.ResponseType))
	}

	return verifyCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod, server)
}

// verifyIssuerState loads the credential offer referenced by issuer_state and
// checks that it was made to the requesting holder.
func (o *authorizeOperation) verifyIssuerState(ctx context.Context, req *AuthorizationRequest) error {
	if req.IssuerState == "" {
		return nil
	}

	data, err := o.svc.store.Get(ctx, req.IssuerState)
	if err != nil {
		return NewServerError(fmt.Errorf("get issuer_state: %w", err))
	}

	offer, err := ParseState(data)
	if err != nil {
		return NewServerError(fmt.Errorf("parse issuer_state: %w", err))
	}

	if offer.IsExpired() {
		return NewInvalidRequestError(fmt.Errorf("issuer_state has expired"))
	}

	if offer.SubjectID != req.SubjectID {
		return NewInvalidRequestError(
			fmt.Errorf("subject_id does not match the credential offer"))
	}

	return nil
}

// verifyScope resolves each scope token to a credential configuration. A
// configuration already claimed through authorization_details cannot be
// claimed again through scope.
func (o *authorizeOperation) verifyScope(scope string) error {
	for _, token := range strings.Fields(scope) {
		matched := false

		for id, cfg := range o.issuer.CredentialConfigurationsSupported {
			if o.claimed(id) {
				continue
			}

			if cfg.Scope == token {
				o.scope = append(o.scope, &ScopeItem{
					Item:                      token,
					CredentialConfigurationID: id,
				})
				matched = true

				break
			}
		}

		if !matched {
			return NewInvalidRequestError(fmt.Errorf("scope item %q is unsupported", token))
		}
	}

	return nil
}

func (o *authorizeOperation) claimed(configurationID string) bool {
	for _, item := range o.details {
		if item.CredentialConfigurationID == configurationID {
			return true
		}
	}

	return false
}

func verifyRedirectURI(redirectURI string, client *metadata.Client) error {
	if redirectURI == "" {
		return NewInvalidRequestError(fmt.Errorf("missing redirect_uri"))
	}

	if !lo.Contains(client.RedirectURIs, redirectURI) {
		return NewInvalidRequestError(
			fmt.Errorf("redirect_uri is not registered for the client"))
	}

	return nil
}

func verifyCodeChallenge(challenge, method string, server *metadata.Server) error {
	if !lo.Contains(server.CodeChallengeMethodsSupported, method) {
		return NewInvalidRequestError(
			fmt.Errorf("code_challenge_method %q is not supported", method))
	}

	if len(challenge) < minCodeChallengeLen || len(challenge) > maxCodeChallengeLen {
		return NewInvalidRequestError(fmt.Errorf("code_challenge must be between %d and %d characters",
			minCodeChallengeLen, maxCodeChallengeLen))
	}

	return nil
}

// verifyDetail checks a single authorization_details entry against issuer
// metadata and resolves the credential configuration it refers to.
func (o *authorizeOperation) verifyDetail(detail *AuthorizationDetail) (*DetailItem, error) {
	if detail.Type != AuthorizationDetailTypeOpenIDCredential {
		return nil, NewInvalidRequestError(
			fmt.Errorf("authorization_details type %q is not supported", detail.Type))
	}

	var (
		configurationID string
		cfg             *metadata.CredentialConfiguration
	)

	switch {
	case detail.CredentialConfigurationID != "" && detail.Format != "":
		return nil, NewInvalidRequestError(
			fmt.Errorf("credential_configuration_id and format are mutually exclusive"))
	case detail.CredentialConfigurationID != "":
		configurationID = detail.CredentialConfigurationID
		cfg = o.issuer.CredentialConfigurationsSupported[configurationID]

		if cfg == nil {
			return nil, NewInvalidRequestError(
				fmt.Errorf("unsupported credential_configuration_id %q", configurationID))
		}
	case detail.Format != "":
		if detail.CredentialDefinition == nil {
			return nil, NewInvalidRequestError(
				fmt.Errorf("credential_definition is required with format"))
		}

		var ok bool

		configurationID, ok = o.issuer.CredentialConfigurationID(detail.Format,
			detail.CredentialDefinition.Type)
		if !ok {
			return nil, NewInvalidRequestError(
				fmt.Errorf("unsupported format %q", detail.Format))
		}

		cfg = o.issuer.CredentialConfigurationsSupported[configurationID]
	default:
		return nil, NewInvalidRequestError(
			fmt.Errorf("authorization_details entry references no credential"))
	}

	if detail.CredentialDefinition != nil {
		for claim := range detail.CredentialDefinition.CredentialSubject {
			if _, ok := cfg.CredentialDefinition.CredentialSubject[claim]; !ok {
				return nil, NewInvalidRequestError(fmt.Errorf("unsupported claim %q", claim))
			}
		}
	}

	return &DetailItem{
		AuthorizationDetail:       detail,
		CredentialConfigurationID: configurationID,
	}, nil
}

func (o *authorizeOperation) process(ctx context.Context, req *AuthorizationRequest) (*AuthorizationResponse, error) {
	var (
		details []*DetailItem
		scope   []*ScopeItem
	)

	for _, item := range o.details {
		identifiers, err := o.svc.subject.Authorize(ctx, req.SubjectID, item.CredentialConfigurationID)
		if err != nil {
			return nil, NewServerError(fmt.Errorf("authorize subject: %w", err))
		}

		if len(identifiers) == 0 {
			continue
		}

		item.CredentialIdentifiers = identifiers
		details = append(details, item)
	}

	for _, item := range o.scope {
		identifiers, err := o.svc.subject.Authorize(ctx, req.SubjectID, item.CredentialConfigurationID)
		if err != nil {
			return nil, NewServerError(fmt.Errorf("authorize subject: %w", err))
		}

		if len(identifiers) == 0 {
			continue
		}

		item.CredentialIdentifiers = identifiers
		scope = append(scope, item)
	}

	if len(details) == 0 && len(scope) == 0 {
		return nil, NewAccessDeniedError(
			fmt.Errorf("subject is not authorized for any requested credential"))
	}

	code := generateToken()

	state := &State{
		Version:   StateVersion,
		ExpiresAt: time.Now().Add(ExpireAuthorized),
		SubjectID: req.SubjectID,
		Stage:     StageAuthorized,
		Authorization: &AuthorizationState{
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
			ClientID:            req.ClientID,
			RedirectURI:         req.RedirectURI,
			Details:             details,
			Scope:               scope,
		},
	}

	if err := o.svc.putState(ctx, code, state); err != nil {
		return nil, NewServerError(err)
	}

	// A consumed offer link must not authorize twice.
	if req.IssuerState != "" {
		if err := o.svc.store.Purge(ctx, req.IssuerState); err != nil {
			return nil, NewServerError(fmt.Errorf("purge issuer_state: %w", err))
		}
	}

	logger.Debugc(ctx, "authorization code issued", logfields.WithClientID(req.ClientID),
		logfields.WithSubjectID(req.SubjectID))

	return &AuthorizationResponse{
		Code:        code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}, nil
}
