/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/samber/lo"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/metadata"
	"github.com/veridia/vci/pkg/proof"
	"github.com/veridia/vci/pkg/vdr"
)

// Credential issues a single credential. It is the batch flow with one
// entry; the proof nonce travels on the single response.
func (s *Service) Credential(ctx context.Context, req *CredentialRequest) (*CredentialResponse, error) {
	batch, err := s.BatchCredential(ctx, &BatchCredentialRequest{
		CredentialIssuer:   req.CredentialIssuer,
		AccessToken:        req.AccessToken,
		CredentialRequests: []*CredentialRequest{req},
	})
	if err != nil {
		return nil, err
	}

	resp := batch.CredentialResponses[0]
	resp.CNonce = batch.CNonce
	resp.CNonceExpiresIn = batch.CNonceExpiresIn

	return resp, nil
}

// BatchCredential issues the requested credentials, deferring any whose
// claim data is still pending. Every proof failure rotates the c_nonce and
// reports the fresh nonce to the wallet.
func (s *Service) BatchCredential(ctx context.Context, req *BatchCredentialRequest) (*BatchCredentialResponse, error) {
	state, err := s.getState(ctx, req.AccessToken)
	if err != nil || state.Token == nil {
		return nil, NewAccessDeniedError(errors.New("invalid access token"))
	}

	issuer, err := s.metadata.Issuer(ctx, req.CredentialIssuer)
	if err != nil {
		return nil, NewInvalidRequestError(fmt.Errorf("invalid credential issuer: %w", err))
	}

	return run[*BatchCredentialRequest, *BatchCredentialResponse](ctx, s, &batchOperation{
		svc:    s,
		issuer: issuer,
		state:  state,
	}, req)
}

type batchOperation struct {
	svc    *Service
	issuer *metadata.Issuer
	state  *State

	items []*credentialItem
}

// credentialItem is one entry of the batch with the values verify derived
// for process.
type credentialItem struct {
	request         *CredentialRequest
	configurationID string
	definition      *metadata.CredentialDefinition
	holderDID       string
}

func (o *batchOperation) callbackID() string {
	return o.state.CallbackID
}

func (o *batchOperation) verify(ctx context.Context, req *BatchCredentialRequest) error {
	if len(req.CredentialRequests) == 0 {
		return NewInvalidCredentialRequestError(errors.New("no credential requests"))
	}

	token := o.state.Token

	if token.CNonceExpired() {
		return NewAccessDeniedError(errors.New("c_nonce has expired"))
	}

	for _, request := range req.CredentialRequests {
		item, err := o.verifyItem(ctx, request)
		if err != nil {
			return err
		}

		o.items = append(o.items, item)
	}

	return nil
}

func (o *batchOperation) verifyItem(ctx context.Context, request *CredentialRequest) (*credentialItem, error) {
	item, err := o.resolveItem(request)
	if err != nil {
		return nil, err
	}

	if err = o.verifyItemProof(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// resolveItem maps the request to a credential configuration the access
// token authorizes, referenced either by granted credential identifier or by
// format plus credential definition.
func (o *batchOperation) resolveItem(request *CredentialRequest) (*credentialItem, error) {
	token := o.state.Token

	var configurationID string

	switch {
	case request.CredentialIdentifier != "" && request.Format != "":
		return nil, NewInvalidCredentialRequestError(
			errors.New("credential_identifier and format are mutually exclusive"))
	case request.CredentialIdentifier != "":
		var found bool

		configurationID, found = grantedConfigurationID(token, request.CredentialIdentifier)
		if !found {
			return nil, NewInvalidCredentialRequestError(
				fmt.Errorf("credential_identifier %q was not granted", request.CredentialIdentifier))
		}
	case request.Format != "":
		if request.CredentialDefinition == nil {
			return nil, NewInvalidCredentialRequestError(
				errors.New("credential_definition is required with format"))
		}

		var ok bool

		configurationID, ok = o.issuer.CredentialConfigurationID(request.Format,
			request.CredentialDefinition.Type)
		if !ok {
			return nil, NewInvalidCredentialRequestError(
				fmt.Errorf("unsupported format %q", request.Format))
		}

		if !lo.Contains(ConfigurationIDs(token.Details, token.Scope), configurationID) {
			return nil, NewInvalidCredentialRequestError(
				fmt.Errorf("credential configuration %q is not authorized", configurationID))
		}
	default:
		return nil, NewInvalidCredentialRequestError(
			errors.New("credential request references no credential"))
	}

	cfg := o.issuer.CredentialConfigurationsSupported[configurationID]
	if cfg == nil || cfg.CredentialDefinition == nil {
		return nil, NewServerError(
			fmt.Errorf("credential configuration %q is not defined in issuer metadata", configurationID))
	}

	return &credentialItem{
		request:         request,
		configurationID: configurationID,
		definition:      cfg.CredentialDefinition,
	}, nil
}

// grantedConfigurationID finds the configuration whose grant contains the
// credential identifier.
func grantedConfigurationID(token *TokenState, identifier string) (string, bool) {
	for _, d := range token.Details {
		if lo.Contains(d.CredentialIdentifiers, identifier) {
			return d.CredentialConfigurationID, true
		}
	}

	for _, s := range token.Scope {
		if lo.Contains(s.CredentialIdentifiers, identifier) {
			return s.CredentialConfigurationID, true
		}
	}

	return "", false
}

// verifyItemProof checks the proof of key possession. Any failure past proof
// presence rotates the c_nonce so the wallet can retry with a fresh binding.
func (o *batchOperation) verifyItemProof(ctx context.Context, item *credentialItem) error {
	p := item.request.Proof
	if p == nil || p.ProofType != ProofTypeJWT {
		return NewInvalidCredentialRequestError(errors.New("proof of type jwt is required"))
	}

	if p.JWT == "" {
		return o.invalidProof(ctx, errors.New("proof JWT not set"))
	}

	parsed, err := proof.Parse(p.JWT)
	if err != nil {
		return o.invalidProof(ctx, fmt.Errorf("parse proof JWT: %w", err))
	}

	if alg := proof.Algorithm(parsed.Header.Alg); alg != proof.ES256K && alg != proof.EdDSA {
		return o.invalidProof(ctx, fmt.Errorf("proof JWT alg %q is not supported", parsed.Header.Alg))
	}

	if parsed.Header.Typ != proof.JWTType {
		return o.invalidProof(ctx, fmt.Errorf("proof JWT typ must be %q", proof.JWTType))
	}

	if parsed.Header.Kid == "" {
		return o.invalidProof(ctx, errors.New("proof JWT kid not set"))
	}

	var claims ProofClaims

	if err = parsed.DecodeClaims(&claims); err != nil {
		return o.invalidProof(ctx, fmt.Errorf("decode proof JWT claims: %w", err))
	}

	if claims.Nonce != o.state.Token.CNonce {
		return o.invalidProof(ctx, errors.New("proof JWT nonce claim is invalid"))
	}

	key, err := vdr.ResolveSigningKey(ctx, o.svc.resolver, parsed.Header.Kid)
	if err != nil {
		return o.invalidProof(ctx, fmt.Errorf("resolve proof signing key: %w", err))
	}

	if err = parsed.Verify(key); err != nil {
		return o.invalidProof(ctx, fmt.Errorf("verify proof JWT: %w", err))
	}

	item.holderDID = parsed.HolderDID()

	return nil
}

// invalidProof rotates the c_nonce and wraps the cause into an invalid_proof
// error carrying the fresh nonce.
func (o *batchOperation) invalidProof(ctx context.Context, cause error) error {
	cNonce, expiresIn, err := o.svc.rotateNonce(ctx, o.state)
	if err != nil {
		return NewServerError(err)
	}

	logger.Debugc(ctx, "proof verification failed, c_nonce rotated", log.WithError(cause))

	return NewInvalidProofError(cause, cNonce, expiresIn)
}

func (o *batchOperation) process(ctx context.Context, _ *BatchCredentialRequest) (*BatchCredentialResponse, error) {
	responses := make([]*CredentialResponse, 0, len(o.items))

	for _, item := range o.items {
		resp, err := o.issueItem(ctx, item)
		if err != nil {
			return nil, err
		}

		responses = append(responses, resp)
	}

	return &BatchCredentialResponse{
		CredentialResponses: responses,
		CNonce:              o.state.Token.CNonce,
		CNonceExpiresIn:     o.state.Token.CNonceExpiresIn(),
	}, nil
}

// issueItem looks up the claim data and either signs the credential or
// defers issuance behind a transaction id.
func (o *batchOperation) issueItem(ctx context.Context, item *credentialItem) (*CredentialResponse, error) {
	claims, err := o.svc.subject.Claims(ctx, o.state.SubjectID, item.configurationID, item.definition)
	if err != nil {
		return nil, NewServerError(fmt.Errorf("subject claims: %w", err))
	}

	if claims.Pending {
		transactionID := uuid.NewString()

		deferred := &State{
			Version:    StateVersion,
			ExpiresAt:  o.state.ExpiresAt,
			SubjectID:  o.state.SubjectID,
			CallbackID: o.state.CallbackID,
			Stage:      StageDeferred,
			Deferral: &DeferralState{
				TransactionID:             transactionID,
				CredentialRequest:         item.request,
				CredentialConfigurationID: item.configurationID,
				HolderDID:                 item.holderDID,
			},
		}

		if err = o.svc.putState(ctx, transactionID, deferred); err != nil {
			return nil, NewServerError(err)
		}

		logger.Debugc(ctx, "issuance deferred", logfields.WithTransactionID(transactionID),
			logfields.WithConfigurationID(item.configurationID))

		return &CredentialResponse{TransactionID: transactionID}, nil
	}

	signed, err := o.svc.signCredential(ctx, o.issuer, item.definition, item.holderDID, claims.Claims)
	if err != nil {
		return nil, err
	}

	logger.Debugc(ctx, "credential issued", logfields.WithConfigurationID(item.configurationID),
		logfields.WithHolderDID(item.holderDID))

	return &CredentialResponse{Credential: signed}, nil
}

// rotateNonce replaces the live c_nonce under the same access token key.
func (s *Service) rotateNonce(ctx context.Context, state *State) (string, int64, error) {
	token := state.Token
	token.CNonce = generateToken()
	token.CNonceExpiresAt = time.Now().Add(ExpireNonce)

	if err := s.putState(ctx, token.AccessToken, state); err != nil {
		return "", 0, err
	}

	return token.CNonce, int64(ExpireNonce.Seconds()), nil
}

// signCredential builds the credential from the definition and claim data
// and signs it as a JWT credential bound to the holder.
func (s *Service) signCredential(ctx context.Context, issuer *metadata.Issuer,
	def *metadata.CredentialDefinition, holderDID string, claims map[string]interface{}) (string, error) {
	for name, entry := range def.CredentialSubject {
		if entry != nil && entry.Mandatory {
			if _, ok := claims[name]; !ok {
				return "", NewInvalidCredentialRequestError(
					fmt.Errorf("mandatory claim %q is not available", name))
			}
		}
	}

	contexts := []ssi.URI{vc.VCContextV1URI()}

	for _, c := range def.Context {
		if c == vc.VCContextV1URI().String() {
			continue
		}

		u, err := ssi.ParseURI(c)
		if err != nil {
			return "", NewServerError(fmt.Errorf("parse credential context: %w", err))
		}

		contexts = append(contexts, *u)
	}

	id := ssi.MustParseURI(fmt.Sprintf("%s/credentials/%s", issuer.CredentialIssuer, uuid.NewString()))

	subject := map[string]any{"id": holderDID}
	for name, value := range claims {
		subject[name] = value
	}

	credential := &vc.VerifiableCredential{
		Context: contexts,
		ID:      &id,
		Type: lo.Map(def.Type, func(t string, _ int) ssi.URI {
			return ssi.MustParseURI(t)
		}),
		Issuer:            ssi.MustParseURI(issuer.CredentialIssuer),
		IssuanceDate:      time.Now(),
		CredentialSubject: []interface{}{subject},
	}

	signed, err := proof.SignCredential(ctx, credential, holderDID, s.signer)
	if err != nil {
		return "", NewServerError(fmt.Errorf("sign credential: %w", err))
	}

	return signed, nil
}
