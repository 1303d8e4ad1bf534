/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proof

import (
	"context"
	"time"

	"github.com/nuts-foundation/go-did/vc"
)

// VCClaims is the payload of a credential issued as a VC-JWT.
type VCClaims struct {
	Issuer    string                   `json:"iss"`
	Subject   string                   `json:"sub,omitempty"`
	JTI       string                   `json:"jti,omitempty"`
	IssuedAt  int64                    `json:"iat"`
	NotBefore int64                    `json:"nbf"`
	VC        *vc.VerifiableCredential `json:"vc"`
}

// SignCredential wraps a Verifiable Credential in VC-JWT claims bound to the
// holder and signs it with the issuer's signer.
func SignCredential(ctx context.Context, credential *vc.VerifiableCredential, holderDID string, signer Signer) (string, error) {
	now := time.Now().Unix()

	claims := &VCClaims{
		Issuer:    credential.Issuer.String(),
		Subject:   holderDID,
		IssuedAt:  now,
		NotBefore: now,
		VC:        credential,
	}

	if credential.ID != nil {
		claims.JTI = credential.ID.String()
	}

	return SignWithHeader(ctx, Header{
		Alg: string(signer.Algorithm()),
		Typ: "JWT",
		Kid: signer.VerificationMethod(),
	}, claims, signer)
}
