/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didkey

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multicodec"
)

// FromEd25519PublicKey derives the did:key DID for an Ed25519 public key.
func FromEd25519PublicKey(pub ed25519.PublicKey) string {
	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, uint64(multicodec.Ed25519Pub))

	return "did:" + MethodName + ":z" + base58.Encode(append(prefix[:n], pub...))
}
