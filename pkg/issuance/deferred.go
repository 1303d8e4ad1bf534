/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/metadata"
)

// DeferredCredential retries retrieval of a previously deferred credential.
// While the claim data is still pending the same transaction_id keeps
// working; once the credential is issued the transaction is consumed.
func (s *Service) DeferredCredential(ctx context.Context, req *DeferredCredentialRequest) (*CredentialResponse, error) {
	tokenState, err := s.getState(ctx, req.AccessToken)
	if err != nil || tokenState.Token == nil {
		return nil, NewAccessDeniedError(errors.New("invalid access token"))
	}

	state, err := s.getState(ctx, req.TransactionID)
	if err != nil {
		return nil, NewInvalidRequestError(errors.New("invalid transaction_id"))
	}

	issuer, err := s.metadata.Issuer(ctx, req.CredentialIssuer)
	if err != nil {
		return nil, NewInvalidRequestError(fmt.Errorf("invalid credential issuer: %w", err))
	}

	return run[*DeferredCredentialRequest, *CredentialResponse](ctx, s, &deferredOperation{
		svc:    s,
		issuer: issuer,
		state:  state,
	}, req)
}

type deferredOperation struct {
	svc    *Service
	issuer *metadata.Issuer
	state  *State
}

func (o *deferredOperation) callbackID() string {
	return o.state.CallbackID
}

func (o *deferredOperation) verify(_ context.Context, req *DeferredCredentialRequest) error {
	deferral := o.state.Deferral
	if o.state.Stage != StageDeferred || deferral == nil || deferral.CredentialRequest == nil {
		return NewInvalidRequestError(errors.New("invalid transaction_id"))
	}

	if deferral.TransactionID != req.TransactionID {
		return NewServerError(errors.New("deferral state does not match transaction_id"))
	}

	return nil
}

func (o *deferredOperation) process(ctx context.Context, req *DeferredCredentialRequest) (*CredentialResponse, error) {
	deferral := o.state.Deferral

	cfg := o.issuer.CredentialConfigurationsSupported[deferral.CredentialConfigurationID]
	if cfg == nil || cfg.CredentialDefinition == nil {
		return nil, NewServerError(fmt.Errorf("credential configuration %q is not defined in issuer metadata",
			deferral.CredentialConfigurationID))
	}

	claims, err := o.svc.subject.Claims(ctx, o.state.SubjectID,
		deferral.CredentialConfigurationID, cfg.CredentialDefinition)
	if err != nil {
		return nil, NewServerError(fmt.Errorf("subject claims: %w", err))
	}

	// Still pending: the wallet retries later with the same transaction_id.
	if claims.Pending {
		logger.Debugc(ctx, "claim data still pending",
			logfields.WithTransactionID(deferral.TransactionID))

		return &CredentialResponse{TransactionID: deferral.TransactionID}, nil
	}

	signed, err := o.svc.signCredential(ctx, o.issuer, cfg.CredentialDefinition,
		deferral.HolderDID, claims.Claims)
	if err != nil {
		return nil, err
	}

	if err = o.svc.store.Purge(ctx, req.TransactionID); err != nil {
		return nil, NewServerError(fmt.Errorf("purge deferral state: %w", err))
	}

	logger.Debugc(ctx, "deferred credential issued",
		logfields.WithTransactionID(deferral.TransactionID),
		logfields.WithConfigurationID(deferral.CredentialConfigurationID))

	return &CredentialResponse{Credential: signed}, nil
}
