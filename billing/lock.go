// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock key only when it still holds our token,
// so a lock that expired and was re-acquired elsewhere is never released
// by the old holder.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// SyncLock is a per-tenant advisory lock over Redis. It keeps multiple
// service instances from reporting the same tenant's period concurrently;
// the ledger's reported flag remains the correctness guarantee, the lock
// just avoids wasted duplicate calls to the billing processor.
type SyncLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSyncLock creates a lock manager. The TTL bounds how long a crashed
// holder can block other instances.
func NewSyncLock(client *redis.Client, ttl time.Duration) *SyncLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SyncLock{client: client, ttl: ttl}
}

// Acquire attempts to take the tenant's lock. When acquired it returns a
// release func and true; when held elsewhere it returns false without
// error.
func (l *SyncLock) Acquire(ctx context.Context, tenantID string) (func(), bool, error) {
	key := "billing:sync-lock:" + tenantID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseScript.Run(context.Background(), l.client, []string{key}, token)
	}
	return release, true, nil
}
