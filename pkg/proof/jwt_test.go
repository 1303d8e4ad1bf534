/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proof

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

type ed25519Signer struct {
	priv ed25519.PrivateKey
	kid  string
}

func (s *ed25519Signer) Algorithm() Algorithm        { return EdDSA }
func (s *ed25519Signer) VerificationMethod() string  { return s.kid }
func (s *ed25519Signer) Sign(_ context.Context, data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

type es256kSigner struct {
	priv *btcec.PrivateKey
	kid  string
}

func (s *es256kSigner) Algorithm() Algorithm       { return ES256K }
func (s *es256kSigner) VerificationMethod() string { return s.kid }

func (s *es256kSigner) Sign(_ context.Context, data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)

	r, sv, err := ecdsa.Sign(rand.Reader, s.priv.ToECDSA(), hash[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 64)
	r.FillBytes(out[:32])
	sv.FillBytes(out[32:])

	return out, nil
}

func newEd25519Signer(t *testing.T) (*ed25519Signer, ed25519.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return &ed25519Signer{priv: priv, kid: "did:example:holder#0"}, pub
}

type testClaims struct {
	Audience string `json:"aud"`
	Nonce    string `json:"nonce"`
}

func TestSignAndVerify_EdDSA(t *testing.T) {
	signer, pub := newEd25519Signer(t)

	compact, err := Sign(context.Background(), &testClaims{
		Audience: "https://issuer.example.com",
		Nonce:    "nonce-1",
	}, signer)
	require.NoError(t, err)

	parsed, err := Parse(compact)
	require.NoError(t, err)
	require.Equal(t, string(EdDSA), parsed.Header.Alg)
	require.Equal(t, JWTType, parsed.Header.Typ)
	require.Equal(t, "did:example:holder#0", parsed.Header.Kid)
	require.Equal(t, "did:example:holder", parsed.HolderDID())

	var claims testClaims
	require.NoError(t, parsed.DecodeClaims(&claims))
	require.Equal(t, "nonce-1", claims.Nonce)

	require.NoError(t, parsed.Verify(pub))
}

func TestSignAndVerify_ES256K(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	signer := &es256kSigner{priv: priv, kid: "did:example:secp#0"}

	compact, err := Sign(context.Background(), &testClaims{Nonce: "nonce-2"}, signer)
	require.NoError(t, err)

	parsed, err := Parse(compact)
	require.NoError(t, err)
	require.Equal(t, string(ES256K), parsed.Header.Alg)

	require.NoError(t, parsed.Verify(priv.PubKey()))

	t.Run("stdlib ecdsa key", func(t *testing.T) {
		require.NoError(t, parsed.Verify(priv.ToECDSA().Public()))
	})

	t.Run("truncated signature", func(t *testing.T) {
		short := *parsed
		short.Signature = short.Signature[:32]

		require.ErrorContains(t, short.Verify(priv.PubKey()), "invalid ES256K signature")
	})
}

func TestVerify_Failures(t *testing.T) {
	signer, pub := newEd25519Signer(t)

	compact, err := Sign(context.Background(), &testClaims{Nonce: "n"}, signer)
	require.NoError(t, err)

	t.Run("tampered payload", func(t *testing.T) {
		parsed, err := Parse(compact)
		require.NoError(t, err)

		parsed.SigningInput[len(parsed.SigningInput)-1] ^= 0x01

		require.ErrorContains(t, parsed.Verify(pub), "invalid EdDSA signature")
	})

	t.Run("wrong key", func(t *testing.T) {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		parsed, err := Parse(compact)
		require.NoError(t, err)

		require.ErrorContains(t, parsed.Verify(otherPub), "invalid EdDSA signature")
	})

	t.Run("wrong key type", func(t *testing.T) {
		parsed, err := Parse(compact)
		require.NoError(t, err)

		require.ErrorContains(t, parsed.Verify("not a key"), "Ed25519")
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		parsed, err := Parse(compact)
		require.NoError(t, err)

		parsed.Header.Alg = "RS256"

		require.ErrorContains(t, parsed.Verify(pub), "unsupported proof algorithm")
	})
}

func TestParse_Failures(t *testing.T) {
	t.Run("wrong part count", func(t *testing.T) {
		_, err := Parse("only.two")
		require.ErrorContains(t, err, "expected 3 parts")
	})

	t.Run("bad header encoding", func(t *testing.T) {
		_, err := Parse("!!!.e30.e30")
		require.ErrorContains(t, err, "decode header")
	})

	t.Run("header not json", func(t *testing.T) {
		header := base64.RawURLEncoding.EncodeToString([]byte("nope"))
		_, err := Parse(header + ".e30.e30")
		require.ErrorContains(t, err, "unmarshal header")
	})

	t.Run("kid and jwk together", func(t *testing.T) {
		header := base64.RawURLEncoding.EncodeToString(
			[]byte(`{"alg":"EdDSA","kid":"did:example:1#0","jwk":{"kty":"OKP"}}`))
		_, err := Parse(header + ".e30.e30")
		require.ErrorContains(t, err, "mutually exclusive")
	})
}

func TestJWKPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := jwk.FromRaw(pub)
	require.NoError(t, err)

	keyJSON, err := json.Marshal(key)
	require.NoError(t, err)

	parsed := &Parsed{Header: Header{JWK: keyJSON}}

	got, err := parsed.JWKPublicKey()
	require.NoError(t, err)
	require.Equal(t, pub, got)

	t.Run("no jwk header", func(t *testing.T) {
		_, err := (&Parsed{}).JWKPublicKey()
		require.ErrorContains(t, err, "no jwk header")
	})
}
