/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"

	"github.com/veridia/vci/pkg/metadata"
)

// ServiceInterface is the surface exposed by the issuance service.
type ServiceInterface interface {
	Authorize(ctx context.Context, req *AuthorizationRequest) (*AuthorizationResponse, error)
	Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error)
	Credential(ctx context.Context, req *CredentialRequest) (*CredentialResponse, error)
	BatchCredential(ctx context.Context, req *BatchCredentialRequest) (*BatchCredentialResponse, error)
	DeferredCredential(ctx context.Context, req *DeferredCredentialRequest) (*CredentialResponse, error)
	Register(ctx context.Context, req *RegistrationRequest) (*RegistrationResponse, error)
}

// ResponseTypeCode is the only supported OAuth2 response_type.
const ResponseTypeCode = "code"

// CodeChallengeMethodS256 is the only supported PKCE transform.
const CodeChallengeMethodS256 = "S256"

// AuthorizationDetailTypeOpenIDCredential identifies an OpenID4VCI
// authorization_details entry.
const AuthorizationDetailTypeOpenIDCredential = "openid_credential"

// AuthorizationRequest carries an OAuth2 authorization request extended with
// OpenID4VCI authorization_details.
type AuthorizationRequest struct {
	CredentialIssuer     string                 `json:"credential_issuer"`
	ResponseType         string                 `json:"response_type"`
	ClientID             string                 `json:"client_id"`
	RedirectURI          string                 `json:"redirect_uri,omitempty"`
	State                string                 `json:"state,omitempty"`
	Scope                string                 `json:"scope,omitempty"`
	CodeChallenge        string                 `json:"code_challenge"`
	CodeChallengeMethod  string                 `json:"code_challenge_method"`
	AuthorizationDetails []*AuthorizationDetail `json:"authorization_details,omitempty"`

	// SubjectID identifies the already-authenticated holder on whose behalf
	// the wallet requests issuance.
	SubjectID string `json:"subject_id"`

	// IssuerState links the request back to a credential offer, when one was
	// made.
	IssuerState string `json:"issuer_state,omitempty"`
}

// AuthorizationDetail is a single openid_credential authorization_details
// entry. A requested credential is referenced either by configuration id or
// by format plus credential definition, never both.
type AuthorizationDetail struct {
	Type                      string                         `json:"type"`
	CredentialConfigurationID string                         `json:"credential_configuration_id,omitempty"`
	Format                    string                         `json:"format,omitempty"`
	CredentialDefinition      *metadata.CredentialDefinition `json:"credential_definition,omitempty"`
}

// AuthorizationResponse carries the issued single-use authorization code.
type AuthorizationResponse struct {
	Code        string `json:"code"`
	State       string `json:"state,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// TokenRequest carries an OAuth2 token request for either the
// authorization_code or the pre-authorized_code grant.
type TokenRequest struct {
	CredentialIssuer string `json:"credential_issuer"`
	ClientID         string `json:"client_id,omitempty"`
	GrantType        string `json:"grant_type"`

	// authorization_code grant.
	Code         string `json:"code,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`

	// pre-authorized_code grant.
	PreAuthorizedCode string `json:"pre-authorized_code,omitempty"`
	TxCode            string `json:"tx_code,omitempty"`
}

// TokenAuthorizationDetail echoes an authorized authorization_details entry
// back to the wallet together with the credential identifiers it may claim.
type TokenAuthorizationDetail struct {
	*AuthorizationDetail

	CredentialIdentifiers []string `json:"credential_identifiers,omitempty"`
}

// TokenResponse carries the access token and the initial proof nonce.
type TokenResponse struct {
	AccessToken          string                      `json:"access_token"`
	TokenType            string                      `json:"token_type"`
	ExpiresIn            int64                       `json:"expires_in"`
	CNonce               string                      `json:"c_nonce,omitempty"`
	CNonceExpiresIn      int64                       `json:"c_nonce_expires_in,omitempty"`
	Scope                string                      `json:"scope,omitempty"`
	AuthorizationDetails []*TokenAuthorizationDetail `json:"authorization_details,omitempty"`
}

// ProofTypeJWT is the only supported proof_type.
const ProofTypeJWT = "jwt"

// Proof carries the holder's proof of key possession.
type Proof struct {
	ProofType string `json:"proof_type"`
	JWT       string `json:"jwt,omitempty"`
}

// ProofClaims is the claim set of a proof JWT.
type ProofClaims struct {
	Issuer   string `json:"iss,omitempty"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Nonce    string `json:"nonce"`
}

// CredentialRequest asks for issuance of a single credential. The credential
// is referenced either by identifier (previously granted at the token
// endpoint) or by format plus credential definition, never both. AccessToken
// is populated by the caller from the request's authorization, not from the
// body.
type CredentialRequest struct {
	CredentialIssuer string `json:"credential_issuer,omitempty"`
	AccessToken      string `json:"-"`

	CredentialIdentifier string                         `json:"credential_identifier,omitempty"`
	Format               string                         `json:"format,omitempty"`
	CredentialDefinition *metadata.CredentialDefinition `json:"credential_definition,omitempty"`

	Proof *Proof `json:"proof,omitempty"`
}

// CredentialResponse carries either an issued credential or a transaction_id
// to retry later via the deferred endpoint.
type CredentialResponse struct {
	Credential    interface{} `json:"credential,omitempty"`
	TransactionID string      `json:"transaction_id,omitempty"`

	CNonce          string `json:"c_nonce,omitempty"`
	CNonceExpiresIn int64  `json:"c_nonce_expires_in,omitempty"`
}

// BatchCredentialRequest asks for issuance of several credentials under one
// access token.
type BatchCredentialRequest struct {
	CredentialIssuer string `json:"credential_issuer,omitempty"`
	AccessToken      string `json:"-"`

	CredentialRequests []*CredentialRequest `json:"credential_requests"`
}

// BatchCredentialResponse carries one response per requested credential, in
// request order, plus the current proof nonce.
type BatchCredentialResponse struct {
	CredentialResponses []*CredentialResponse `json:"credential_responses"`

	CNonce          string `json:"c_nonce,omitempty"`
	CNonceExpiresIn int64  `json:"c_nonce_expires_in,omitempty"`
}

// DeferredCredentialRequest retries retrieval of a previously deferred
// credential.
type DeferredCredentialRequest struct {
	CredentialIssuer string `json:"credential_issuer,omitempty"`
	AccessToken      string `json:"-"`

	TransactionID string `json:"transaction_id"`
}

// RegistrationRequest carries dynamic client registration metadata.
type RegistrationRequest struct {
	CredentialIssuer string `json:"credential_issuer,omitempty"`
	AccessToken      string `json:"-"`

	ClientMetadata *metadata.Client `json:"client_metadata"`
}

// RegistrationResponse echoes the registered client metadata, including the
// assigned client_id.
type RegistrationResponse struct {
	ClientMetadata *metadata.Client `json:"client_metadata"`
}
