/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata defines the read-only configuration records the issuance
// engine looks up by id: Credential Issuer metadata, Authorization Server
// metadata and OAuth Client metadata.
package metadata

// Grant types recognised by the engine.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypePreAuthorizedCode = "urn:ietf:params:oauth:grant-type:pre-authorized_code"
)

// Issuer is the Credential Issuer metadata.
type Issuer struct {
	CredentialIssuer                  string                              `json:"credential_issuer"`
	CredentialEndpoint                string                              `json:"credential_endpoint,omitempty"`
	BatchCredentialEndpoint           string                              `json:"batch_credential_endpoint,omitempty"`
	DeferredCredentialEndpoint        string                              `json:"deferred_credential_endpoint,omitempty"`
	CredentialConfigurationsSupported map[string]*CredentialConfiguration `json:"credential_configurations_supported"`
}

// CredentialConfiguration is an issuer-defined template a concrete credential
// instance is issued against.
type CredentialConfiguration struct {
	Format               string                `json:"format"`
	Scope                string                `json:"scope,omitempty"`
	CredentialDefinition *CredentialDefinition `json:"credential_definition,omitempty"`
	ProofTypesSupported  map[string]ProofType  `json:"proof_types_supported,omitempty"`
}

// ProofType lists signing algorithms accepted for a proof type.
type ProofType struct {
	ProofSigningAlgValuesSupported []string `json:"proof_signing_alg_values_supported"`
}

// CredentialDefinition describes the credential type and its claim shapes.
type CredentialDefinition struct {
	Context           []string               `json:"@context,omitempty"`
	Type              []string               `json:"type,omitempty"`
	CredentialSubject map[string]*ClaimEntry `json:"credentialSubject,omitempty"`
}

// ClaimEntry describes a single supported claim.
type ClaimEntry struct {
	Mandatory bool   `json:"mandatory,omitempty"`
	ValueType string `json:"value_type,omitempty"`
}

// Clone returns a deep copy of the definition.
func (d *CredentialDefinition) Clone() *CredentialDefinition {
	if d == nil {
		return nil
	}

	clone := &CredentialDefinition{
		Context: append([]string(nil), d.Context...),
		Type:    append([]string(nil), d.Type...),
	}

	if d.CredentialSubject != nil {
		clone.CredentialSubject = make(map[string]*ClaimEntry, len(d.CredentialSubject))

		for name, entry := range d.CredentialSubject {
			e := *entry
			clone.CredentialSubject[name] = &e
		}
	}

	return clone
}

// CredentialConfigurationID finds the configuration id whose format and
// credential type match the given pair.
func (i *Issuer) CredentialConfigurationID(format string, types []string) (string, bool) {
	for id, cfg := range i.CredentialConfigurationsSupported {
		if cfg.Format != format || cfg.CredentialDefinition == nil {
			continue
		}

		if typesMatch(cfg.CredentialDefinition.Type, types) {
			return id, true
		}
	}

	return "", false
}

func typesMatch(supported, requested []string) bool {
	if len(supported) != len(requested) {
		return false
	}

	for _, t := range requested {
		found := false

		for _, s := range supported {
			if s == t {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// Server is the Authorization Server metadata.
type Server struct {
	Issuer                                     string   `json:"issuer"`
	AuthorizationEndpoint                      string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                              string   `json:"token_endpoint,omitempty"`
	GrantTypesSupported                        []string `json:"grant_types_supported,omitempty"`
	ResponseTypesSupported                     []string `json:"response_types_supported,omitempty"`
	ScopesSupported                            []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported              []string `json:"code_challenge_methods_supported,omitempty"`
	PreAuthorizedGrantAnonymousAccessSupported bool     `json:"pre-authorized_grant_anonymous_access_supported,omitempty"`
}

// Client is the OAuth Client metadata.
type Client struct {
	ClientID                string   `json:"client_id"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	CredentialOfferEndpoint string   `json:"credential_offer_endpoint,omitempty"`
}

// SupportsGrantType reports whether the client registered the grant type.
func (c *Client) SupportsGrantType(grantType string) bool {
	return contains(c.GrantTypes, grantType)
}

// SupportsGrantType reports whether the server advertises the grant type.
func (s *Server) SupportsGrantType(grantType string) bool {
	return contains(s.GrantTypesSupported, grantType)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}

	return false
}
