/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// StateVersion is the current schema version of persisted State records.
// Decoding rejects unknown versions.
const StateVersion = 1

// Expiry policy for persisted state. Durations are applied when writing,
// enforced by comparison against current time at read.
const (
	// ExpireAuthCode bounds the life of an issuer_state (offer) record.
	ExpireAuthCode = 5 * time.Minute
	// ExpireAuthorized bounds the life of an authorization code.
	ExpireAuthorized = 5 * time.Minute
	// ExpireAccess bounds the life of an access token.
	ExpireAccess = 15 * time.Minute
	// ExpireNonce bounds the life of a c_nonce.
	ExpireNonce = 10 * time.Minute
)

// Stage tags the phase of the issuance flow a State record belongs to.
type Stage string

const (
	// StageAuthorized - produced by the Authorization Handler.
	StageAuthorized Stage = "authorized"
	// StageValidated - produced by the Token Handler.
	StageValidated Stage = "validated"
	// StageDeferred - produced by the Credential Handler when claim data is
	// pending.
	StageDeferred Stage = "deferred"
)

// State is the single persisted unit of the issuance flow, keyed by an opaque
// string (authorization code, access token or transaction id). The record is
// exclusively owned by whichever key currently references it; moving state
// between stages is purge-old/write-new, never in-place mutation under the
// old key.
type State struct {
	Version    int       `json:"version"`
	ExpiresAt  time.Time `json:"expires_at"`
	SubjectID  string    `json:"subject_id,omitempty"`
	CallbackID string    `json:"callback_id,omitempty"`
	Stage      Stage     `json:"stage"`

	Authorization *AuthorizationState `json:"authorization,omitempty"`
	Token         *TokenState         `json:"token,omitempty"`
	Deferral      *DeferralState      `json:"deferral,omitempty"`
}

// AuthorizationState captures the outcome of a successful authorization.
type AuthorizationState struct {
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	ClientID            string `json:"client_id,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`

	// TxCode is the transaction code captured at offer time. Pre-authorized
	// flow only.
	TxCode string `json:"tx_code,omitempty"`

	Details []*DetailItem `json:"details,omitempty"`
	Scope   []*ScopeItem  `json:"scope,omitempty"`
}

// TokenState captures the outcome of a successful token exchange, including
// the live proof nonce binding the next proof JWT.
type TokenState struct {
	AccessToken     string    `json:"access_token"`
	CNonce          string    `json:"c_nonce"`
	CNonceExpiresAt time.Time `json:"c_nonce_expires_at"`

	Details []*DetailItem `json:"details,omitempty"`
	Scope   []*ScopeItem  `json:"scope,omitempty"`
}

// CNonceExpired reports whether the proof nonce has expired.
func (t *TokenState) CNonceExpired() bool {
	return t.CNonceExpiresAt.Before(time.Now())
}

// CNonceExpiresIn returns the remaining life of the proof nonce in seconds.
func (t *TokenState) CNonceExpiresIn() int64 {
	return int64(time.Until(t.CNonceExpiresAt).Seconds())
}

// DeferralState stores a credential request verbatim for later replay, once
// claim data becomes available, together with the values already derived
// from it so the replay skips proof re-verification.
type DeferralState struct {
	TransactionID             string             `json:"transaction_id"`
	CredentialRequest         *CredentialRequest `json:"credential_request"`
	CredentialConfigurationID string             `json:"credential_configuration_id"`
	HolderDID                 string             `json:"holder_did"`
}

// DetailItem associates an authorized authorization_details entry with the
// credential identifiers the holder may claim against it.
type DetailItem struct {
	AuthorizationDetail       *AuthorizationDetail `json:"authorization_detail"`
	CredentialConfigurationID string               `json:"credential_configuration_id"`
	CredentialIdentifiers     []string             `json:"credential_identifiers,omitempty"`
}

// ScopeItem associates an authorized scope token with the credential
// identifiers the holder may claim against it.
type ScopeItem struct {
	Item                      string   `json:"item"`
	CredentialConfigurationID string   `json:"credential_configuration_id"`
	CredentialIdentifiers     []string `json:"credential_identifiers,omitempty"`
}

// IsExpired reports whether the record is past its expiry.
func (s *State) IsExpired() bool {
	return s.ExpiresAt.Before(time.Now())
}

// Validate checks schema version and stage/sub-record consistency.
func (s *State) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}

	switch s.Stage {
	case StageAuthorized:
		if s.Authorization == nil {
			return fmt.Errorf("stage %s without authorization record", s.Stage)
		}
	case StageValidated:
		if s.Token == nil {
			return fmt.Errorf("stage %s without token record", s.Stage)
		}
	case StageDeferred:
		if s.Deferral == nil {
			return fmt.Errorf("stage %s without deferral record", s.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", s.Stage)
	}

	return nil
}

// Marshal serializes the record for the state store.
func (s *State) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return json.Marshal(s)
}

// ParseState deserializes and validates a stored record.
func ParseState(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// ConfigurationIDs returns the credential configuration ids present in the
// given items, authorization_details first.
func ConfigurationIDs(details []*DetailItem, scope []*ScopeItem) []string {
	var ids []string

	for _, d := range details {
		ids = append(ids, d.CredentialConfigurationID)
	}

	for _, s := range scope {
		ids = append(ids, s.CredentialConfigurationID)
	}

	return ids
}

const randomTokenSize = 32

// generateToken mints an opaque random value for authorization codes, access
// tokens and proof nonces.
func generateToken() string {
	b := make([]byte, randomTokenSize)

	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
