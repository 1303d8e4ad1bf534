/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didjwk

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// FromPublicKey derives the did:jwk DID for a public key.
func FromPublicKey(pub crypto.PublicKey) (string, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return "", fmt.Errorf("jwk from public key: %w", err)
	}

	encoded, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("marshal jwk: %w", err)
	}

	return "did:" + MethodName + ":" + base64.RawURLEncoding.EncodeToString(encoded), nil
}
