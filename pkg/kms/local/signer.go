/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package local provides an in-process EdDSA signer whose identity is the
// did:jwk of its public key. It backs the Signer collaborator in tests and
// single-node deployments.
package local

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/veridia/vci/pkg/proof"
	"github.com/veridia/vci/pkg/vdr/didjwk"
)

// Signer signs with an in-memory Ed25519 key.
type Signer struct {
	privateKey ed25519.PrivateKey
	did        string
}

// NewSigner generates a fresh Ed25519 key pair.
func NewSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return NewSignerFromKey(priv)
}

// NewSignerFromKey wraps an existing Ed25519 private key.
func NewSignerFromKey(priv ed25519.PrivateKey) (*Signer, error) {
	d, err := didjwk.FromPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("derive did: %w", err)
	}

	return &Signer{privateKey: priv, did: d}, nil
}

// Algorithm implements proof.Signer.
func (s *Signer) Algorithm() proof.Algorithm {
	return proof.EdDSA
}

// VerificationMethod implements proof.Signer.
func (s *Signer) VerificationMethod() string {
	return s.did + "#0"
}

// DID returns the signer's did:jwk identity.
func (s *Signer) DID() string {
	return s.did
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

// Sign implements proof.Signer.
func (s *Signer) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, data), nil
}
