/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didjwk

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	resolver := NewResolver()
	ctx := context.Background()

	t.Run("roundtrip", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		d, err := FromPublicKey(pub)
		require.NoError(t, err)

		doc, err := resolver.Resolve(ctx, d)
		require.NoError(t, err)
		require.Equal(t, d, doc.ID.String())
		require.Len(t, doc.VerificationMethod, 1)
		require.Equal(t, "0", doc.VerificationMethod[0].ID.Fragment)

		key, err := doc.VerificationMethod[0].PublicKey()
		require.NoError(t, err)
		require.Equal(t, pub, key)
	})

	t.Run("wrong method", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "did:web:example.com")
		require.ErrorContains(t, err, "unsupported DID method")
	})

	t.Run("invalid base64 id", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "did:jwk:!!!")
		require.Error(t, err)
	})

	t.Run("id is not a JWK", func(t *testing.T) {
		id := base64.RawURLEncoding.EncodeToString([]byte("not a jwk"))

		_, err := resolver.Resolve(ctx, "did:jwk:"+id)
		require.ErrorContains(t, err, "parse JWK")
	})

	t.Run("private key is rejected", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		key, err := jwk.FromRaw(priv)
		require.NoError(t, err)

		keyJSON, err := json.Marshal(key)
		require.NoError(t, err)

		id := base64.RawURLEncoding.EncodeToString(keyJSON)

		_, err = resolver.Resolve(ctx, "did:jwk:"+id)
		require.ErrorContains(t, err, "must not contain a private key")
	})
}
