/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package didjwk resolves did:jwk DIDs, whose method-specific id is a
// base64url-encoded JWK. The resulting document holds a single verification
// method with fragment "0".
package didjwk

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
)

// MethodName is the name of this DID method.
const MethodName = "jwk"

// Resolver resolves did:jwk DIDs.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve implements the Resolver interface.
func (r *Resolver) Resolve(_ context.Context, didURL string) (*did.Document, error) {
	u, err := did.ParseDIDURL(didURL)
	if err != nil {
		return nil, fmt.Errorf("parse did url: %w", err)
	}

	if u.Method != MethodName {
		return nil, fmt.Errorf("unsupported DID method: %s", u.Method)
	}

	encodedJWK, err := base64.RawURLEncoding.DecodeString(u.ID)
	if err != nil {
		return nil, fmt.Errorf("decode did:jwk id: %w", err)
	}

	key, err := jwk.ParseKey(encodedJWK)
	if err != nil {
		return nil, fmt.Errorf("parse JWK: %w", err)
	}

	var raw interface{}
	if err = key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("raw key: %w", err)
	}

	// private keys are forbidden in did:jwk
	switch raw.(type) {
	case ed25519.PrivateKey, *ecdsa.PrivateKey, *rsa.PrivateKey:
		return nil, fmt.Errorf("did:jwk must not contain a private key")
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("public key of JWK: %w", err)
	}

	var rawPublic interface{}
	if err = pub.Raw(&rawPublic); err != nil {
		return nil, fmt.Errorf("raw public key: %w", err)
	}

	keyID := did.DIDURL{DID: u.DID, Fragment: "0"}

	verificationMethod, err := did.NewVerificationMethod(keyID, ssi.JsonWebKey2020, u.DID, rawPublic)
	if err != nil {
		return nil, fmt.Errorf("create verification method: %w", err)
	}

	document := &did.Document{ID: u.DID}
	document.AddAssertionMethod(verificationMethod)

	return document, nil
}
