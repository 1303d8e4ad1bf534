/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vdr provides DID resolution for the issuance engine: a method
// registry dispatching to per-method resolvers, and a helper recovering the
// public key referenced by a proof JWT's kid.
package vdr

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	"github.com/nuts-foundation/go-did/did"
)

// ErrMethodNotSupported is returned when no resolver is registered for the
// DID method.
var ErrMethodNotSupported = errors.New("did method not supported")

// Resolver resolves a DID URL to a DID document.
type Resolver interface {
	Resolve(ctx context.Context, didURL string) (*did.Document, error)
}

// Registry dispatches resolution to per-method resolvers.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: map[string]Resolver{}}
}

// Register adds a resolver for a DID method.
func (r *Registry) Register(method string, resolver Resolver) {
	r.resolvers[method] = resolver
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, didURL string) (*did.Document, error) {
	u, err := did.ParseDIDURL(didURL)
	if err != nil {
		return nil, fmt.Errorf("parse did url: %w", err)
	}

	resolver, ok := r.resolvers[u.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, u.Method)
	}

	return resolver.Resolve(ctx, didURL)
}

// ResolveSigningKey resolves a kid-style DID URL (DID + "#" + key id) to the
// public key of the matching verification method.
func ResolveSigningKey(ctx context.Context, resolver Resolver, kid string) (crypto.PublicKey, error) {
	u, err := did.ParseDIDURL(kid)
	if err != nil {
		return nil, fmt.Errorf("parse kid: %w", err)
	}

	if u.Fragment == "" {
		return nil, errors.New("kid has no key fragment")
	}

	doc, err := resolver.Resolve(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", u.DID.String(), err)
	}

	for _, vm := range doc.VerificationMethod {
		if vm.ID.Fragment != u.Fragment {
			continue
		}

		key, err := vm.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("verification method public key: %w", err)
		}

		return key, nil
	}

	return nil, fmt.Errorf("no verification method %q in document %s", u.Fragment, doc.ID.String())
}
