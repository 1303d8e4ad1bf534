/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package issuance implements the OpenID4VCI credential issuance flow:
// authorization, token exchange, credential issuance (single, batch and
// deferred) and dynamic client registration, over an expiring key-value
// state store.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nuts-foundation/go-did/did"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/metadata"
	"github.com/veridia/vci/pkg/proof"
)

var logger = log.New("issuance")

// ErrDataNotFound is returned by state store implementations when no value
// exists under the requested key.
var ErrDataNotFound = errors.New("data not found")

// stateStore persists issuance state as opaque bytes under caller-chosen
// keys, with per-record expiry.
type stateStore interface {
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Get(ctx context.Context, key string) ([]byte, error)
	Purge(ctx context.Context, key string) error
}

// metadataService supplies issuer, authorization server and client metadata.
type metadataService interface {
	Issuer(ctx context.Context, credentialIssuer string) (*metadata.Issuer, error)
	Server(ctx context.Context, credentialIssuer string) (*metadata.Server, error)
	Client(ctx context.Context, clientID string) (*metadata.Client, error)
}

// clientRegistrar persists dynamically registered clients and assigns their
// client_id.
type clientRegistrar interface {
	Register(ctx context.Context, client *metadata.Client) (*metadata.Client, error)
}

// Claims is the subject provider's answer to a claim lookup. Pending means
// the claim data is not yet available and issuance should be deferred.
type Claims struct {
	Claims  map[string]interface{}
	Pending bool
}

// subjectService is the bridge to the issuer's holder data. Authorize
// decides which concrete credential instances a holder may claim for a
// credential configuration; Claims returns the claim values for one of them.
type subjectService interface {
	Authorize(ctx context.Context, subjectID, credentialConfigurationID string) ([]string, error)
	Claims(ctx context.Context, subjectID, credentialConfigurationID string,
		def *metadata.CredentialDefinition) (*Claims, error)
}

// didResolver resolves DID documents for proof verification.
type didResolver interface {
	Resolve(ctx context.Context, didURL string) (*did.Document, error)
}

// Status is a flow notification kind delivered to the callback sink.
type Status string

const (
	// StatusRequested signals that a verified request entered processing.
	StatusRequested Status = "presentation_requested"
	// StatusError signals that a request failed verification or processing.
	StatusError Status = "error"
)

// CallbackStatus is a single flow notification.
type CallbackStatus struct {
	CallbackID string `json:"callback_id"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
}

// callbackSink receives flow notifications. Delivery is best effort;
// failures never fail the flow.
type callbackSink interface {
	Notify(ctx context.Context, status *CallbackStatus) error
}

// Config holds the collaborators of the issuance service.
type Config struct {
	StateStore      stateStore
	MetadataService metadataService
	ClientRegistrar clientRegistrar
	SubjectService  subjectService
	DIDResolver     didResolver
	Signer          proof.Signer
	CallbackSink    callbackSink
}

// Service implements the issuance flow.
type Service struct {
	store     stateStore
	metadata  metadataService
	registrar clientRegistrar
	subject   subjectService
	resolver  didResolver
	signer    proof.Signer
	callbacks callbackSink
}

// NewService returns a new issuance service.
func NewService(config *Config) (*Service, error) {
	if config.StateStore == nil {
		return nil, errors.New("state store is required")
	}

	if config.MetadataService == nil {
		return nil, errors.New("metadata service is required")
	}

	if config.SubjectService == nil {
		return nil, errors.New("subject service is required")
	}

	if config.Signer == nil {
		return nil, errors.New("signer is required")
	}

	return &Service{
		store:     config.StateStore,
		metadata:  config.MetadataService,
		registrar: config.ClientRegistrar,
		subject:   config.SubjectService,
		resolver:  config.DIDResolver,
		signer:    config.Signer,
		callbacks: config.CallbackSink,
	}, nil
}

// getState loads, parses and expiry-checks the record under key. Both a
// missing and an expired record surface as ErrDataNotFound, so callers can
// map them to a single protocol error.
func (s *Service) getState(ctx context.Context, key string) (*State, error) {
	b, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	state, err := ParseState(b)
	if err != nil {
		return nil, err
	}

	if state.IsExpired() {
		logger.Debugc(ctx, "state record expired", logfields.WithStateKey(key),
			logfields.WithStage(string(state.Stage)))

		return nil, ErrDataNotFound
	}

	return state, nil
}

// putState writes the record under key, expiring it at the record's own
// expiry.
func (s *Service) putState(ctx context.Context, key string, state *State) error {
	b, err := state.Marshal()
	if err != nil {
		return err
	}

	if err = s.store.Put(ctx, key, b, state.ExpiresAt); err != nil {
		return fmt.Errorf("put state: %w", err)
	}

	return nil
}

// notify delivers a flow notification to the callback sink. Failures are
// logged and swallowed.
func (s *Service) notify(ctx context.Context, callbackID string, status Status, detail string) {
	if callbackID == "" || s.callbacks == nil {
		return
	}

	err := s.callbacks.Notify(ctx, &CallbackStatus{
		CallbackID: callbackID,
		Status:     status,
		Detail:     detail,
	})
	if err != nil {
		logger.Warnc(ctx, "callback notification failed, ignoring", log.WithError(err),
			logfields.WithCallbackID(callbackID))
	}
}
