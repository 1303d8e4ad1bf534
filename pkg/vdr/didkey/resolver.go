/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package didkey resolves did:key DIDs: a base58btc multicodec-prefixed
// public key. Only the key types the issuance engine can verify proofs with
// are supported.
package didkey

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multicodec"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
)

// MethodName is the name of this DID method.
const MethodName = "key"

var errInvalidPublicKeyLength = errors.New("did:key: invalid public key length")

// Resolver resolves did:key DIDs.
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

	encodedKey := u.ID
	if len(encodedKey) == 0 || encodedKey[0] != 'z' {
		return nil, errors.New("did:key does not start with 'z'")
	}

	mcBytes, err := base58.Decode(encodedKey[1:])
	if err != nil {
		return nil, fmt.Errorf("did:key: invalid base58btc: %w", err)
	}

	reader := bytes.NewReader(mcBytes)

	keyType, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, fmt.Errorf("did:key: invalid multicodec value: %w", err)
	}

	keyBytes, _ := io.ReadAll(reader)

	var key crypto.PublicKey

	switch multicodec.Code(keyType) {
	case multicodec.Ed25519Pub:
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, errInvalidPublicKeyLength
		}

		key = ed25519.PublicKey(keyBytes)
	case multicodec.Secp256k1Pub:
		// no JWK representation for secp256k1 in the key libraries used here
		return nil, errors.New("did:key: secp256k1 public keys are not supported")
	default:
		return nil, fmt.Errorf("did:key: unsupported public key type: %d", keyType)
	}

	keyID := did.DIDURL{DID: u.DID, Fragment: u.ID}

	vm, err := did.NewVerificationMethod(keyID, ssi.JsonWebKey2020, u.DID, key)
	if err != nil {
		return nil, err
	}

	document := &did.Document{ID: u.DID}
	document.AddAssertionMethod(vm)

	return document, nil
}
