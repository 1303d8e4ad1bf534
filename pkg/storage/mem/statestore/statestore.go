/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package statestore provides an in-memory issuance state store for tests
// and single-node deployments.
package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/veridia/vci/pkg/issuance"
)

const cleanupInterval = time.Minute

// Store stores issuance state in process memory.
type Store struct {
	cache *cache.Cache
}

// New creates Store.
func New() *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (s *Store) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("expiry %s is in the past", expiresAt)
	}

	s.cache.Set(key, value, ttl)

	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, issuance.ErrDataNotFound
	}

	return v.([]byte), nil
}

func (s *Store) Purge(_ context.Context, key string) error {
	s.cache.Delete(key)

	return nil
}
