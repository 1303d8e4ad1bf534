/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode is the stable error kind surfaced to the caller. Codes follow
// RFC 6749 §5.2 and the OpenID4VCI credential endpoint error registry.
type ErrorCode string

const (
	// ErrorCodeInvalidRequest - the request is missing a required parameter,
	// includes an unsupported parameter value, or is otherwise malformed.
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrorCodeInvalidClient - client authentication failed or the client is
	// unknown.
	ErrorCodeInvalidClient ErrorCode = "invalid_client"

	// ErrorCodeInvalidGrant - the provided authorization grant (authorization
	// code, pre-authorized code) is invalid, expired, revoked, or was issued
	// to another client. Absent and expired codes deliberately share this
	// code to avoid a guessing oracle.
	ErrorCodeInvalidGrant ErrorCode = "invalid_grant"

	// ErrorCodeUnsupportedGrantType - the grant type is not supported.
	ErrorCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"

	// ErrorCodeUnsupportedResponseType - the response type is not supported
	// by the client or the server.
	ErrorCodeUnsupportedResponseType ErrorCode = "unsupported_response_type"

	// ErrorCodeAccessDenied - the resource owner or authorization server
	// denied the request.
	ErrorCodeAccessDenied ErrorCode = "access_denied"

	// ErrorCodeInvalidCredentialRequest - the credential request is malformed
	// or names an unauthorized credential.
	ErrorCodeInvalidCredentialRequest ErrorCode = "invalid_credential_request"

	// ErrorCodeInvalidProof - the proof-of-possession JWT failed validation.
	// The error carries a fresh c_nonce for the next attempt.
	ErrorCodeInvalidProof ErrorCode = "invalid_proof"

	// ErrorCodeServerError - an unexpected collaborator failure.
	ErrorCodeServerError ErrorCode = "server_error"
)

// Error is a protocol error with a stable code and a human-readable detail.
type Error struct {
	Code ErrorCode
	Err  error

	// CNonce and CNonceExpiresIn are set only for invalid_proof errors so a
	// legitimate client can retry with a correctly bound proof.
	CNonce          string
	CNonceExpiresIn int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error in the OAuth2 error response shape.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ErrorCode       ErrorCode `json:"error"`
		Description     string    `json:"error_description,omitempty"`
		CNonce          string    `json:"c_nonce,omitempty"`
		CNonceExpiresIn int64     `json:"c_nonce_expires_in,omitempty"`
	}{
		ErrorCode:       e.Code,
		Description:     e.Err.Error(),
		CNonce:          e.CNonce,
		CNonceExpiresIn: e.CNonceExpiresIn,
	})
}

// NewInvalidRequestError creates an invalid_request error.
func NewInvalidRequestError(err error) *Error {
	return &Error{Code: ErrorCodeInvalidRequest, Err: err}
}

// NewInvalidClientError creates an invalid_client error.
func NewInvalidClientError(err error) *Error {
	return &Error{Code: ErrorCodeInvalidClient, Err: err}
}

// NewInvalidGrantError creates an invalid_grant error.
func NewInvalidGrantError(err error) *Error {
	return &Error{Code: ErrorCodeInvalidGrant, Err: err}
}

// NewUnsupportedGrantTypeError creates an unsupported_grant_type error.
func NewUnsupportedGrantTypeError(err error) *Error {
	return &Error{Code: ErrorCodeUnsupportedGrantType, Err: err}
}

// NewUnsupportedResponseTypeError creates an unsupported_response_type error.
func NewUnsupportedResponseTypeError(err error) *Error {
	return &Error{Code: ErrorCodeUnsupportedResponseType, Err: err}
}

// NewAccessDeniedError creates an access_denied error.
func NewAccessDeniedError(err error) *Error {
	return &Error{Code: ErrorCodeAccessDenied, Err: err}
}

// NewInvalidCredentialRequestError creates an invalid_credential_request error.
func NewInvalidCredentialRequestError(err error) *Error {
	return &Error{Code: ErrorCodeInvalidCredentialRequest, Err: err}
}

// NewInvalidProofError creates an invalid_proof error carrying the rotated
// c_nonce the client must bind its next proof to.
func NewInvalidProofError(err error, cNonce string, cNonceExpiresIn int64) *Error {
	return &Error{
		Code:            ErrorCodeInvalidProof,
		Err:             err,
		CNonce:          cNonce,
		CNonceExpiresIn: cNonceExpiresIn,
	}
}

// NewServerError wraps an unexpected collaborator failure.
func NewServerError(err error) *Error {
	return &Error{Code: ErrorCodeServerError, Err: err}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}
