/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package statestore provides a redis-backed issuance state store. Records
// expire server-side at the expiry the service supplies, so a crashed purge
// never leaks a live code.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisapi "github.com/redis/go-redis/v9"

	"github.com/veridia/vci/pkg/issuance"
	"github.com/veridia/vci/pkg/storage/redis"
)

const keyPrefix = "issuancestate"

// Store stores issuance state in redis.
type Store struct {
	redisClient *redis.Client
}

// New creates Store.
func New(redisClient *redis.Client) *Store {
	return &Store{
		redisClient: redisClient,
	}
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("expiry %s is in the past", expiresAt)
	}

	if err := s.redisClient.API().Set(ctx, resolveRedisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.redisClient.API().Get(ctx, resolveRedisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redisapi.Nil) {
			return nil, issuance.ErrDataNotFound
		}

		return nil, fmt.Errorf("get: %w", err)
	}

	return b, nil
}

func (s *Store) Purge(ctx context.Context, key string) error {
	if err := s.redisClient.API().Del(ctx, resolveRedisKey(key)).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}

	return nil
}

func resolveRedisKey(key string) string {
	return fmt.Sprintf("%s-%s", keyPrefix, key)
}
