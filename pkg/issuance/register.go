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
)

// Register performs dynamic client registration. Registration is gated by a
// live access token.
func (s *Service) Register(ctx context.Context, req *RegistrationRequest) (*RegistrationResponse, error) {
	b, err := s.store.Get(ctx, req.AccessToken)
	if err != nil {
		return nil, NewServerError(fmt.Errorf("state not found: %w", err))
	}

	state, err := ParseState(b)
	if err != nil {
		return nil, NewServerError(err)
	}

	if state.IsExpired() {
		return nil, NewInvalidRequestError(errors.New("access token has expired"))
	}

	return run[*RegistrationRequest, *RegistrationResponse](ctx, s, &registerOperation{
		svc:   s,
		state: state,
	}, req)
}

type registerOperation struct {
	svc   *Service
	state *State
}

func (o *registerOperation) callbackID() string {
	return o.state.CallbackID
}

func (o *registerOperation) verify(_ context.Context, req *RegistrationRequest) error {
	if o.state.Token == nil {
		return NewAccessDeniedError(errors.New("invalid access token"))
	}

	if req.ClientMetadata == nil {
		return NewInvalidRequestError(errors.New("missing client_metadata"))
	}

	return nil
}

func (o *registerOperation) process(ctx context.Context, req *RegistrationRequest) (*RegistrationResponse, error) {
	if o.svc.registrar == nil {
		return nil, NewServerError(errors.New("client registrar is not configured"))
	}

	client, err := o.svc.registrar.Register(ctx, req.ClientMetadata)
	if err != nil {
		return nil, NewServerError(fmt.Errorf("register client: %w", err))
	}

	logger.Debugc(ctx, "client registered", logfields.WithClientID(client.ClientID))

	return &RegistrationResponse{ClientMetadata: client}, nil
}
