/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package proof implements the compact JWT-style proof codec used for
// proof-of-possession: header and claims are base64url-encoded JSON, the
// signature covers "header.payload". Byte-level signing is delegated to an
// external Signer; verification takes a resolved public key.
package proof

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Algorithm is a supported proof signature algorithm.
type Algorithm string

const (
	// ES256K is ECDSA over secp256k1 with SHA-256.
	ES256K Algorithm = "ES256K"
	// EdDSA is Ed25519.
	EdDSA Algorithm = "EdDSA"
)

// Valid reports whether the algorithm is one of the two supported ones.
func (a Algorithm) Valid() bool {
	return a == ES256K || a == EdDSA
}

// JWTType is the media type required in the "typ" header of a proof JWT.
const JWTType = "openid4vci-proof+jwt"

const compactParts = 3

// Header is the protected header of a proof JWT. Kid and JWK are mutually
// exclusive.
type Header struct {
	Alg string          `json:"alg"`
	Typ string          `json:"typ,omitempty"`
	Kid string          `json:"kid,omitempty"`
	JWK json.RawMessage `json:"jwk,omitempty"`
}

// Signer produces detached signatures for a named algorithm and exposes the
// DID URL of the verification method holding the public key.
type Signer interface {
	Algorithm() Algorithm
	VerificationMethod() string
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// Sign encodes claims into a compact proof JWT signed by the given signer.
// The header is derived from the signer: alg, typ and kid.
func Sign(ctx context.Context, claims interface{}, signer Signer) (string, error) {
	return SignWithHeader(ctx, Header{
		Alg: string(signer.Algorithm()),
		Typ: JWTType,
		Kid: signer.VerificationMethod(),
	}, claims, signer)
}

// SignWithHeader encodes claims into a compact JWT with an explicit header.
func SignWithHeader(ctx context.Context, header Header, claims interface{}, signer Signer) (string, error) {
	signingInput, err := EncodeSigningInput(header, claims)
	if err != nil {
		return "", err
	}

	sig, err := signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// EncodeSigningInput returns "base64url(header).base64url(claims)".
func EncodeSigningInput(header Header, claims interface{}) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON), nil
}

// Parsed is a decoded but not necessarily verified proof JWT.
type Parsed struct {
	Header       Header
	RawClaims    []byte
	SigningInput []byte
	Signature    []byte
}

// Parse decodes a compact proof JWT without verifying its signature.
func Parse(compact string) (*Parsed, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != compactParts {
		return nil, errors.New("invalid compact JWT: expected 3 parts")
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var header Header
	if err = json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}

	if header.Kid != "" && len(header.JWK) > 0 {
		return nil, errors.New("kid and jwk headers are mutually exclusive")
	}

	rawClaims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	return &Parsed{
		Header:       header,
		RawClaims:    rawClaims,
		SigningInput: []byte(parts[0] + "." + parts[1]),
		Signature:    signature,
	}, nil
}

// DecodeClaims unmarshals the claims payload into v.
func (p *Parsed) DecodeClaims(v interface{}) error {
	if err := json.Unmarshal(p.RawClaims, v); err != nil {
		return fmt.Errorf("unmarshal claims: %w", err)
	}

	return nil
}

// HolderDID returns the kid stripped of its fragment.
func (p *Parsed) HolderDID() string {
	kid, _, _ := strings.Cut(p.Header.Kid, "#")

	return kid
}

// JWKPublicKey extracts the public key from an inline "jwk" header.
func (p *Parsed) JWKPublicKey() (crypto.PublicKey, error) {
	if len(p.Header.JWK) == 0 {
		return nil, errors.New("no jwk header")
	}

	key, err := jwk.ParseKey(p.Header.JWK)
	if err != nil {
		return nil, fmt.Errorf("parse jwk header: %w", err)
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("public key of jwk: %w", err)
	}

	var raw interface{}
	if err = pub.Raw(&raw); err != nil {
		return nil, fmt.Errorf("raw public key: %w", err)
	}

	return raw, nil
}

// Verify checks the detached signature over "header.payload" using the given
// public key and the algorithm named in the header.
func (p *Parsed) Verify(key crypto.PublicKey) error {
	switch Algorithm(p.Header.Alg) {
	case EdDSA:
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("EdDSA proof requires an Ed25519 key, got %T", key)
		}

		if !ed25519.Verify(pub, p.SigningInput, p.Signature) {
			return errors.New("invalid EdDSA signature")
		}

		return nil
	case ES256K:
		return p.verifyES256K(key)
	default:
		return fmt.Errorf("unsupported proof algorithm %q", p.Header.Alg)
	}
}

func (p *Parsed) verifyES256K(key crypto.PublicKey) error {
	pub, err := secpPublicKey(key)
	if err != nil {
		return err
	}

	if len(p.Signature) != 64 {
		return errors.New("invalid ES256K signature length")
	}

	var r, s btcec.ModNScalar

	if r.SetByteSlice(p.Signature[:32]) || s.SetByteSlice(p.Signature[32:]) {
		return errors.New("invalid ES256K signature")
	}

	hash := sha256.Sum256(p.SigningInput)

	if !btcecdsa.NewSignature(&r, &s).Verify(hash[:], pub) {
		return errors.New("invalid ES256K signature")
	}

	return nil
}

func secpPublicKey(key crypto.PublicKey) (*btcec.PublicKey, error) {
	switch k := key.(type) {
	case *btcec.PublicKey:
		return k, nil
	case *ecdsa.PublicKey:
		point := make([]byte, 65)
		point[0] = 0x04
		k.X.FillBytes(point[1:33])
		k.Y.FillBytes(point[33:])

		pub, err := btcec.ParsePubKey(point)
		if err != nil {
			return nil, fmt.Errorf("parse secp256k1 public key: %w", err)
		}

		return pub, nil
	default:
		return nil, fmt.Errorf("ES256K proof requires a secp256k1 key, got %T", key)
	}
}
